package sqlinline

const QEnsureMediaJobsTable = `--sql cece5d24-2166-4053-b1e3-5881ec95e23e
create table if not exists media_jobs (
  job_id text primary key,
  job_type text not null,
  status text not null,
  progress integer not null default 0,
  prompt text not null default '',
  originating_card_id text not null default '',
  stack_type text not null default '',
  asset_json jsonb,
  analysis_json jsonb,
  error_message text not null default '',
  error_kind text not null default '',
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

// QUpsertMediaJob never moves a terminal row back to an active status.
const QUpsertMediaJob = `--sql ed08af6b-83b8-407c-b119-dc70978d7695
insert into media_jobs (
  job_id, job_type, status, progress, prompt, originating_card_id, stack_type,
  asset_json, analysis_json, error_message, error_kind, created_at, updated_at
)
values ($1::text, $2::text, $3::text, $4::int, $5::text, $6::text, $7::text,
  $8::jsonb, $9::jsonb, $10::text, $11::text, $12::timestamptz, $13::timestamptz)
on conflict (job_id) do update set
  status = excluded.status,
  progress = greatest(media_jobs.progress, excluded.progress),
  asset_json = coalesce(excluded.asset_json, media_jobs.asset_json),
  analysis_json = coalesce(excluded.analysis_json, media_jobs.analysis_json),
  error_message = excluded.error_message,
  error_kind = excluded.error_kind,
  updated_at = excluded.updated_at
where media_jobs.status not in ('completed', 'failed');
`

const QSelectMediaJob = `--sql fdc5e0a9-5de1-417e-b781-badf7270ee04
select job_id, job_type, status, progress, prompt, originating_card_id, stack_type,
  asset_json, analysis_json, error_message, error_kind, created_at, updated_at
from media_jobs
where job_id = $1::text;
`

const QListRecentMediaJobs = `--sql bf01915e-f9ab-4319-bb91-bbfa5b8d285b
select job_id, job_type, status, progress, prompt, originating_card_id, stack_type,
  asset_json, analysis_json, error_message, error_kind, created_at, updated_at
from media_jobs
order by created_at desc
limit $1::int;
`
