package sqlinline

const QInsertUser = `--sql 7f6be76d-bcb4-4fa6-9f92-a3f966b9e4ac
insert into users (id, username, email, password_hash, role, credits, is_active, created_at, updated_at)
values ($1::uuid, $2::text, lower($3::text), $4::text, $5::text, $6::bigint, true, now(), now())
returning created_at, updated_at;
`

const QSelectUserByID = `--sql 7ef7624d-80c4-409b-a09c-2ea546dddd45
select id::text, username, email, password_hash, role, credits, is_active, created_at, updated_at
from users
where id = $1::uuid;
`

const QSelectUserByLogin = `--sql 3a1f517b-46cd-468e-b83d-01396c1d6a33
select id::text, username, email, password_hash, role, credits, is_active, created_at, updated_at
from users
where username = $1::text
   or email = lower($1::text)
limit 1;
`

const QUpsertSeedUser = `--sql f7080aef-59cb-419f-8dad-3cd662707602
insert into users (id, username, email, password_hash, role, credits, is_active, created_at, updated_at)
values (gen_random_uuid(), $1::text, lower($2::text), $3::text, $4::text, $5::bigint, true, now(), now())
on conflict (username) do nothing
returning id::text;
`
