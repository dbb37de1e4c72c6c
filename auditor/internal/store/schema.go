package store

// Schema is the DDL of the audit history.
const Schema = `
CREATE TABLE IF NOT EXISTS audits (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    url          TEXT NOT NULL,
    dom_hash     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'completed',
    total_issues INTEGER NOT NULL DEFAULT 0,
    cached       INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audits_user ON audits(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS issues (
    id              TEXT PRIMARY KEY,
    audit_id        TEXT NOT NULL,
    rule            TEXT NOT NULL,
    category        TEXT NOT NULL,
    priority        TEXT NOT NULL DEFAULT '',
    wcag_sc         TEXT NOT NULL DEFAULT '',
    gigw_checkpoint TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    selector        TEXT NOT NULL DEFAULT '',
    html_snippet    TEXT NOT NULL DEFAULT '',
    ai_explanation  TEXT NOT NULL DEFAULT '',
    ai_fixed_code   TEXT NOT NULL DEFAULT '',
    occurrences     INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (audit_id) REFERENCES audits(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_issues_audit ON issues(audit_id);
`
