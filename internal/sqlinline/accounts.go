package sqlinline

const QSelectAccountByID = `--sql 3b6e5018-52df-4af4-a7c8-aa221200a0a0
select id, coalesce(email, ''), tier, credit_balance, active_job_count, coalesce(stripe_customer_id, ''), created_at, updated_at
from accounts
where id = $1::uuid;
`

const QSelectAccountByEmail = `--sql 5911e778-4140-412f-84a5-7aeba0ff684c
select id, coalesce(email, ''), tier, credit_balance, active_job_count, coalesce(stripe_customer_id, ''), created_at, updated_at
from accounts
where lower(email) = lower($1::text);
`

const QSelectAccountByCustomer = `--sql 915b091e-9ef2-471b-bb5d-d2731d6016ff
select id, coalesce(email, ''), tier, credit_balance, active_job_count, coalesce(stripe_customer_id, ''), created_at, updated_at
from accounts
where stripe_customer_id = $1::text;
`

// QUpsertAccount provisions an account on first sight of a principal and
// books its welcome credits. Existing accounts are returned unchanged apart
// from a missing email being filled in.
const QUpsertAccount = `--sql f1ec9f98-1498-4953-bdac-795b9da1d690
with upserted as (
    insert into accounts (id, email, tier, credit_balance)
    values (coalesce($1::uuid, gen_random_uuid()), nullif($2::text, ''), 'basic', $3::int)
    on conflict (id) do update
    set email = coalesce(accounts.email, excluded.email),
        updated_at = now()
    returning id, email, tier, credit_balance, active_job_count, stripe_customer_id, created_at, updated_at,
              (xmax = 0) as inserted
), welcome as (
    insert into credit_transactions (account_id, kind, delta, balance_after)
    select id, 'welcome', credit_balance, credit_balance
    from upserted
    where inserted and credit_balance > 0
)
select id, coalesce(email, ''), tier, credit_balance, active_job_count, coalesce(stripe_customer_id, ''), created_at, updated_at
from upserted;
`
