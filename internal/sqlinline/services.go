package sqlinline

const QSelectServiceByName = `--sql 4da675a5-7c4f-4732-b349-356fc7479d0f
select
    s.id::text,
    s.name,
    coalesce(s.description, ''),
    coalesce(s.tag_id::text, ''),
    coalesce(t.name, ''),
    s.cost,
    s.is_active,
    s.endpoint,
    s.created_at,
    s.updated_at
from services s
left join service_tags t on t.id = s.tag_id
where s.name = $1::text;
`

const QSelectServiceByID = `--sql c8692b39-6da4-4ed8-8d44-d9a541cdf064
select
    s.id::text,
    s.name,
    coalesce(s.description, ''),
    coalesce(s.tag_id::text, ''),
    coalesce(t.name, ''),
    s.cost,
    s.is_active,
    s.endpoint,
    s.created_at,
    s.updated_at
from services s
left join service_tags t on t.id = s.tag_id
where s.id = $1::uuid;
`

const QListServices = `--sql b49bb39e-e9a5-4fa3-942b-4d7cd82ce1f3
select
    s.id::text,
    s.name,
    coalesce(s.description, ''),
    coalesce(s.tag_id::text, ''),
    coalesce(t.name, ''),
    s.cost,
    s.is_active,
    s.endpoint,
    s.created_at,
    s.updated_at
from services s
left join service_tags t on t.id = s.tag_id
where ($1::text = '' or s.tag_id::text = $1::text)
  and ($2::text = '' or s.name ilike '%' || $2::text || '%' or s.description ilike '%' || $2::text || '%')
  and (not $3::bool or s.is_active)
order by s.name asc;
`

const QListServiceTags = `--sql 85bd1428-5c52-4cdd-ab03-81c07869786b
select id::text, name, coalesce(description, ''), created_at
from service_tags
order by name asc;
`

const QUpdateService = `--sql 3cd7e4e5-4464-4640-8288-c5933820fb71
with updated as (
    update services
    set cost = coalesce($2::bigint, cost),
        is_active = coalesce($3::bool, is_active),
        description = coalesce($4::text, description),
        updated_at = now()
    where id = $1::uuid
    returning id, name, description, tag_id, cost, is_active, endpoint, created_at, updated_at
)
select
    u.id::text,
    u.name,
    coalesce(u.description, ''),
    coalesce(u.tag_id::text, ''),
    coalesce(t.name, ''),
    u.cost,
    u.is_active,
    u.endpoint,
    u.created_at,
    u.updated_at
from updated u
left join service_tags t on t.id = u.tag_id;
`

const QUpsertServiceTag = `--sql 386466a3-6a41-4825-87eb-a53974f25470
insert into service_tags (id, name, description, created_at)
values (gen_random_uuid(), $1::text, $2::text, now())
on conflict (name) do update set description = excluded.description
returning id::text;
`

const QUpsertService = `--sql a30b0f47-0e63-4078-ac96-a7b3a5ae276b
insert into services (id, name, description, tag_id, cost, is_active, endpoint, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::uuid, $4::bigint, true, $5::text, now(), now())
on conflict (name) do update set
    description = excluded.description,
    tag_id = excluded.tag_id,
    endpoint = excluded.endpoint,
    updated_at = now()
returning id::text;
`
