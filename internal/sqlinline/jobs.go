package sqlinline

const QSelectJobByID = `--sql 2f5738d9-aefe-475b-b2d5-c598d7ddfc6e
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, coalesce(external_handle, ''), output_refs, coalesce(error_detail, ''),
       created_at, updated_at
from jobs
where id = $1::uuid;
`

const QSelectJobByExternalHandle = `--sql 5d474e9d-1e26-463e-ab58-15d71961b60a
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, coalesce(external_handle, ''), output_refs, coalesce(error_detail, ''),
       created_at, updated_at
from jobs
where external_handle = $1::text;
`

const QListJobsByOwner = `--sql 5d4fa4e0-5d2b-44d5-ac2d-e270c3f63d64
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, coalesce(external_handle, ''), output_refs, coalesce(error_detail, ''),
       created_at, updated_at
from jobs
where owner_id = $1::uuid
order by created_at desc
limit $2::int;
`

const QListActiveJobsCreatedBefore = `--sql 40e8ccb1-9d41-4733-947a-3562f5e6f5ec
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, coalesce(external_handle, ''), output_refs, coalesce(error_detail, ''),
       created_at, updated_at
from jobs
where status in ('queued', 'processing')
  and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`

const QMarkJobProcessing = `--sql 34fbc32c-edc1-407f-845a-a06a675c37f3
update jobs
set status = 'processing',
    external_handle = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'queued';
`
