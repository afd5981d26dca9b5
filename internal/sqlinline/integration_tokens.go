package sqlinline

const QSelectIntegrationToken = `--sql 9c48c80c-ccf7-4272-a45b-5b7a07172160
select token, properties
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 2a35990b-8ef0-4068-aefa-aa39dad70bba
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
select gen_random_uuid(), i.provider, i.token, i.properties, now(), now()
from incoming i
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
