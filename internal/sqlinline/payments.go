package sqlinline

const QInsertPayment = `--sql 3bb7fe4c-edab-4c64-a639-40fbd8ef6d70
insert into payments (id, user_id, amount, credits, status, method, transaction_id, created_at)
values ($1::uuid, $2::uuid, $3::numeric, $4::bigint, 'pending', $5::text, $6::text, now())
returning created_at;
`

const QSelectPaymentForOwner = `--sql 26a9cff5-a7ca-4fa1-9dc5-494af5cdc1f9
select id::text, user_id::text, amount::float8, credits, status, method, transaction_id, created_at, completed_at
from payments
where id = $1::uuid
  and user_id = $2::uuid;
`

const QListPaymentsForOwner = `--sql ed880928-44b0-4660-a1ca-dffbe0e8d57c
select id::text, user_id::text, amount::float8, credits, status, method, transaction_id, created_at, completed_at
from payments
where user_id = $1::uuid
order by created_at desc
limit $2::int
offset $3::int;
`

const QMarkPaymentSucceeded = `--sql 01de1c75-bb0d-4e67-b1e9-e25c1a37c0d7
update payments
set status = 'success',
    completed_at = $3::timestamptz
where id = $1::uuid
  and user_id = $2::uuid
  and status = 'pending'
returning id::text, user_id::text, amount::float8, credits, status, method, transaction_id, created_at, completed_at;
`
