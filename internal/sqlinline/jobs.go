package sqlinline

const QInsertJob = `--sql 53595d87-5a88-4757-99a0-9721ee30170e
insert into jobs (id, user_id, service_id, status, input_data, credits_used, created_at)
values ($1::uuid, $2::uuid, $3::uuid, 'pending', $4::jsonb, $5::bigint, now())
returning created_at;
`

const QSelectJobForOwner = `--sql be440db0-50da-4d19-a5c1-35864caa2162
select
    j.id::text,
    j.user_id::text,
    j.service_id::text,
    s.name,
    j.status,
    j.input_data,
    j.output_data,
    coalesce(j.error_message, ''),
    j.credits_used,
    j.created_at,
    j.started_at,
    j.completed_at
from jobs j
join services s on s.id = j.service_id
where j.id = $1::uuid
  and j.user_id = $2::uuid;
`

const QSelectJobByID = `--sql c77b8b30-7679-4112-9c7c-3a96693174df
select
    j.id::text,
    j.user_id::text,
    j.service_id::text,
    s.name,
    j.status,
    j.input_data,
    j.output_data,
    coalesce(j.error_message, ''),
    j.credits_used,
    j.created_at,
    j.started_at,
    j.completed_at
from jobs j
join services s on s.id = j.service_id
where j.id = $1::uuid;
`

const QListJobsForOwner = `--sql ec7d6c05-8652-46c6-9fe9-9bf01b553499
select
    j.id::text,
    j.user_id::text,
    j.service_id::text,
    s.name,
    j.status,
    j.input_data,
    j.output_data,
    coalesce(j.error_message, ''),
    j.credits_used,
    j.created_at,
    j.started_at,
    j.completed_at
from jobs j
join services s on s.id = j.service_id
where j.user_id = $1::uuid
  and ($2::text = '' or j.status = $2::text)
order by j.created_at desc
limit $3::int
offset $4::int;
`

// The status guards make every edge conditional: a stale or duplicate writer
// affects zero rows.

const QMarkJobProcessing = `--sql 999bf6eb-439c-4092-ac59-9070cf874a5a
update jobs
set status = 'processing',
    started_at = $2::timestamptz
where id = $1::uuid
  and status = 'pending'
  and started_at is null;
`

const QMarkJobCompleted = `--sql 4d043958-cb70-44f0-8766-0fdd49db826d
update jobs
set status = 'completed',
    output_data = $2::jsonb,
    error_message = null,
    completed_at = $3::timestamptz
where id = $1::uuid
  and status = 'processing'
  and completed_at is null;
`

const QMarkJobFailed = `--sql cd909ada-d520-4618-897a-a505088f568f
update jobs
set status = 'failed',
    error_message = $2::text,
    completed_at = $3::timestamptz
where id = $1::uuid
  and status = 'processing'
  and completed_at is null;
`

const QDeleteTerminalJob = `--sql 1aee0207-251e-4a8d-b86b-0813722b3367
delete from jobs
where id = $1::uuid
  and user_id = $2::uuid
  and status in ('completed', 'failed');
`

const QSelectJobStatusForOwner = `--sql 3a337d1e-819d-4b12-9d80-1f8b203e88a8
select status
from jobs
where id = $1::uuid
  and user_id = $2::uuid;
`

const QListPendingJobsBefore = `--sql 08fe613b-44bf-41c5-ad02-e6b5054e7ec7
select id::text
from jobs
where status = 'pending'
  and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`
