package sqlinline

const QSelectSynthesisCache = `--sql 122af099-58ca-4a79-9ccd-6a1dcd7a9f65
select storage_path
from synthesis_cache
where hash = $1::text;
`

const QUpsertSynthesisCache = `--sql aadb3c10-9499-442c-9e6e-6e6a877762c4
insert into synthesis_cache (hash, storage_path)
values ($1::text, $2::text)
on conflict (hash) do update
set storage_path = excluded.storage_path,
    created_at = now();
`
