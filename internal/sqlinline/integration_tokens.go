package sqlinline

// Provider API tokens stored in the database take precedence over the
// environment so operators can rotate them with vocalctl.

const QSelectIntegrationToken = `--sql dc8f0b91-db29-45f8-8d94-1a71970639c5
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 62057640-fde9-4f3e-b9af-023b4d02b65b
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
