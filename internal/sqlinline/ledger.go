package sqlinline

// QReserveJob debits the account, takes a quota slot, inserts the queued job
// and its reservation ledger row in one statement. No row is returned when a
// guard rejects the reservation.
//
// $1 account, $2 kind, $3 quality tier, $4 epochs, $5 cleaning, $6 name,
// $7 source path, $8 cost, $9 enforce quota, $10 requires paid tier,
// $11..$13 max concurrent jobs for basic, standard, premium.
const QReserveJob = `--sql 2903b8b4-7947-4612-bb66-3747add94601
with input as (
    select
        $1::uuid as account_id,
        $2::text as kind,
        $3::text as quality_tier,
        $4::int as epochs,
        $5::boolean as cleaning,
        $6::text as name,
        $7::text as source_path,
        $8::int as cost,
        $9::boolean as enforce_quota,
        $10::boolean as requires_paid
),
acct as (
    update accounts a
    set credit_balance = a.credit_balance - i.cost,
        active_job_count = a.active_job_count + 1,
        updated_at = now()
    from input i
    where a.id = i.account_id
      and a.credit_balance >= i.cost
      and (
          not i.enforce_quota
          or a.active_job_count < case a.tier
              when 'premium' then $13::int
              when 'standard' then $12::int
              else $11::int
          end
      )
      and (not i.requires_paid or a.tier <> 'basic')
    returning a.id, a.credit_balance
),
ins as (
    insert into jobs (owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name, source_artifact_path)
    select acct.id, i.kind, 'queued', i.cost, i.quality_tier, i.epochs, i.cleaning, i.name, i.source_path
    from acct cross join input i
    returning id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
              source_artifact_path, created_at, updated_at
),
ledger as (
    insert into credit_transactions (account_id, job_id, kind, delta, balance_after)
    select ins.owner_id, ins.id, 'reservation', -ins.cost_in_credits, acct.credit_balance
    from ins cross join acct
    where ins.cost_in_credits > 0
)
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, created_at, updated_at
from ins;
`

// QCompensateJob fails a non-terminal job, releases its quota slot and, when
// $3 is true, refunds the recorded cost. No row is returned when the job was
// already terminal.
const QCompensateJob = `--sql b39beb9b-3984-4d71-9849-a3c687b010d4
with failed as (
    update jobs j
    set status = 'failed',
        error_detail = $2::text,
        updated_at = now()
    where j.id = $1::uuid
      and j.status in ('queued', 'processing')
    returning j.id, j.owner_id, j.kind, j.status, j.cost_in_credits, j.quality_tier, j.epochs, j.cleaning,
              j.name, j.source_artifact_path, coalesce(j.external_handle, '') as external_handle,
              j.output_refs, coalesce(j.error_detail, '') as error_detail, j.created_at, j.updated_at
),
acct as (
    update accounts a
    set active_job_count = greatest(a.active_job_count - 1, 0),
        credit_balance = a.credit_balance + case when $3::boolean then f.cost_in_credits else 0 end,
        updated_at = now()
    from failed f
    where a.id = f.owner_id
    returning a.id, a.credit_balance
),
ledger as (
    insert into credit_transactions (account_id, job_id, kind, delta, balance_after)
    select f.owner_id, f.id, 'refund', f.cost_in_credits, acct.credit_balance
    from failed f
    join acct on acct.id = f.owner_id
    where $3::boolean and f.cost_in_credits > 0
)
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, external_handle, output_refs, error_detail, created_at, updated_at
from failed;
`

// QCompleteJob marks a non-terminal job completed, stores its outputs and
// releases the quota slot.
const QCompleteJob = `--sql 7ef87b5a-81de-45d5-83fc-3205e760f7f1
with done as (
    update jobs j
    set status = 'completed',
        output_refs = j.output_refs || coalesce($2::jsonb, '{}'::jsonb),
        error_detail = null,
        updated_at = now()
    where j.id = $1::uuid
      and j.status in ('queued', 'processing')
    returning j.id, j.owner_id, j.kind, j.status, j.cost_in_credits, j.quality_tier, j.epochs, j.cleaning,
              j.name, j.source_artifact_path, coalesce(j.external_handle, '') as external_handle,
              j.output_refs, '' as error_detail, j.created_at, j.updated_at
),
acct as (
    update accounts a
    set active_job_count = greatest(a.active_job_count - 1, 0),
        updated_at = now()
    from done d
    where a.id = d.owner_id
)
select id, owner_id, kind, status, cost_in_credits, quality_tier, epochs, cleaning, name,
       source_artifact_path, external_handle, output_refs, error_detail, created_at, updated_at
from done;
`

// QInsertGrantLedger claims the grant reference. A conflicting reference
// returns no row and the grant must not be applied.
const QInsertGrantLedger = `--sql 417f460d-1835-4bb0-90f9-a99455f55b88
insert into credit_transactions (account_id, kind, delta, balance_after, reference)
values ($1::uuid, $2::text, $3::int, 0, nullif($4::text, ''))
on conflict (reference) do nothing
returning id;
`

const QApplyGrantToAccount = `--sql b81786b2-93e2-418e-bcac-449e4ebfd58a
update accounts
set credit_balance = credit_balance + $2::int,
    tier = coalesce(nullif($3::text, ''), tier),
    stripe_customer_id = coalesce(nullif($4::text, ''), stripe_customer_id),
    updated_at = now()
where id = $1::uuid
returning credit_balance;
`

const QSetGrantBalanceAfter = `--sql fb23c56a-4094-4458-8dc5-3efde18da21f
update credit_transactions
set balance_after = $2::int
where id = $1::uuid;
`

const QListLedgerByAccount = `--sql 452bb608-8571-406e-a5b1-77efed3d5d06
select id, coalesce(job_id::text, ''), kind, delta, balance_after, coalesce(reference, ''), created_at
from credit_transactions
where account_id = $1::uuid
order by created_at desc
limit $2::int;
`
