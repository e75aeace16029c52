package postgres

// Schema is applied by EnsureSchema. Raw samples and per-minute aggregates
// are stored per probe kind.
const Schema = `
CREATE TABLE IF NOT EXISTS samples_tcp (
  id         BIGSERIAL PRIMARY KEY,
  ts         TIMESTAMPTZ NOT NULL,
  target_id  TEXT NULL,
  host       TEXT NOT NULL,
  port       INTEGER NOT NULL,
  latency_ms DOUBLE PRECISION NOT NULL,
  success    BOOLEAN NOT NULL,
  error      TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_tcp_ts ON samples_tcp (ts);

CREATE TABLE IF NOT EXISTS samples_dns (
  id          BIGSERIAL PRIMARY KEY,
  ts          TIMESTAMPTZ NOT NULL,
  target_id   TEXT NULL,
  fqdn        TEXT NOT NULL,
  record_type TEXT NOT NULL,
  resolver    TEXT NOT NULL DEFAULT '',
  rcode       TEXT NULL,
  answers     TEXT NULL,
  latency_ms  DOUBLE PRECISION NOT NULL,
  success     BOOLEAN NOT NULL,
  error       TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_dns_ts ON samples_dns (ts);

CREATE TABLE IF NOT EXISTS samples_http (
  id          BIGSERIAL PRIMARY KEY,
  ts          TIMESTAMPTZ NOT NULL,
  target_id   TEXT NULL,
  url         TEXT NOT NULL,
  method      TEXT NOT NULL,
  status_code INTEGER NULL,
  latency_ms  DOUBLE PRECISION NOT NULL,
  success     BOOLEAN NOT NULL,
  error       TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_http_ts ON samples_http (ts);

CREATE TABLE IF NOT EXISTS aggregates_tcp_1m (
  bucket        TIMESTAMPTZ NOT NULL,
  host          TEXT NOT NULL,
  port          INTEGER NOT NULL,
  count         INTEGER NOT NULL,
  success_count INTEGER NOT NULL,
  p50 DOUBLE PRECISION NULL,
  p95 DOUBLE PRECISION NULL,
  avg DOUBLE PRECISION NULL,
  min DOUBLE PRECISION NULL,
  max DOUBLE PRECISION NULL,
  PRIMARY KEY (bucket, host, port)
);

CREATE TABLE IF NOT EXISTS aggregates_dns_1m (
  bucket        TIMESTAMPTZ NOT NULL,
  fqdn          TEXT NOT NULL,
  resolver      TEXT NOT NULL DEFAULT '',
  count         INTEGER NOT NULL,
  success_count INTEGER NOT NULL,
  p50 DOUBLE PRECISION NULL,
  p95 DOUBLE PRECISION NULL,
  avg DOUBLE PRECISION NULL,
  min DOUBLE PRECISION NULL,
  max DOUBLE PRECISION NULL,
  PRIMARY KEY (bucket, fqdn, resolver)
);

CREATE TABLE IF NOT EXISTS aggregates_http_1m (
  bucket        TIMESTAMPTZ NOT NULL,
  url           TEXT NOT NULL,
  method        TEXT NOT NULL,
  count         INTEGER NOT NULL,
  success_count INTEGER NOT NULL,
  p50 DOUBLE PRECISION NULL,
  p95 DOUBLE PRECISION NULL,
  avg DOUBLE PRECISION NULL,
  min DOUBLE PRECISION NULL,
  max DOUBLE PRECISION NULL,
  PRIMARY KEY (bucket, url, method)
);

CREATE TABLE IF NOT EXISTS alerts (
  target_key   TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`
