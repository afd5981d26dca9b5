package sqlinline

// QDebitCredits decrements and journals in one statement. The credits guard
// makes the check and the write a single atomic step; no row back means the
// balance was short (or the user does not exist).
const QDebitCredits = `--sql 8dbe58d6-7938-4f40-830b-fb22001348cd
with debited as (
    update users
    set credits = credits - $2::bigint,
        updated_at = now()
    where id = $1::uuid
      and credits >= $2::bigint
    returning id, credits
),
entry as (
    insert into credit_ledger (id, user_id, job_id, payment_id, entry_type, amount, balance_after, note, created_at)
    select gen_random_uuid(), d.id, $3::uuid, $4::uuid, $5::text, -$2::bigint, d.credits, $6::text, now()
    from debited d
    returning balance_after
)
select balance_after from entry;
`

const QCreditCredits = `--sql 7a04aa32-7663-41db-b0f3-1a6b76d84c94
with credited as (
    update users
    set credits = credits + $2::bigint,
        updated_at = now()
    where id = $1::uuid
    returning id, credits
),
entry as (
    insert into credit_ledger (id, user_id, job_id, payment_id, entry_type, amount, balance_after, note, created_at)
    select gen_random_uuid(), c.id, $3::uuid, $4::uuid, $5::text, $2::bigint, c.credits, $6::text, now()
    from credited c
    returning balance_after
)
select balance_after from entry;
`

const QRecordLedgerEntry = `--sql b4d65180-db71-41a8-a32e-6a7e759a8b1a
insert into credit_ledger (id, user_id, job_id, payment_id, entry_type, amount, balance_after, note, created_at)
select gen_random_uuid(), u.id, $2::uuid, $3::uuid, $4::text, 0, u.credits, $5::text, now()
from users u
where u.id = $1::uuid
returning id::text;
`

const QSelectUserBalance = `--sql d5c4123f-c42f-4872-bbc4-10dea7cf1834
select credits
from users
where id = $1::uuid;
`

const QListLedgerEntries = `--sql 4070207f-0a9e-41cc-a9e6-0a67da4878c2
select
    id::text,
    user_id::text,
    coalesce(job_id::text, ''),
    coalesce(payment_id::text, ''),
    entry_type,
    amount,
    balance_after,
    note,
    created_at
from credit_ledger
where user_id = $1::uuid
order by created_at desc
limit $2::int
offset $3::int;
`
