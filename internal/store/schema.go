package store

// Schema is the DDL for the Postgres store. The content hash is unique per
// tenant; a receipt link is nullable and one-way.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                UUID PRIMARY KEY,
	tenant_id         UUID NOT NULL,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL DEFAULT '',
	content_hash      TEXT NOT NULL,
	doc_type          TEXT NOT NULL,
	status            TEXT NOT NULL,
	raw_text          TEXT NOT NULL DEFAULT '',
	ingestion_method  TEXT NOT NULL DEFAULT '',
	competence_month  INT NOT NULL DEFAULT 0,
	competence_year   INT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant_type
	ON documents (tenant_id, doc_type, created_at);

CREATE TABLE IF NOT EXISTS transactions (
	id               UUID PRIMARY KEY,
	tenant_id        UUID NOT NULL,
	document_id      UUID NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	merchant_name    TEXT NOT NULL DEFAULT '',
	date             DATE,
	amount           NUMERIC(14, 2) NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	competence_month INT NOT NULL DEFAULT 0,
	competence_year  INT NOT NULL DEFAULT 0,
	is_finalized     BOOLEAN NOT NULL DEFAULT FALSE,
	receipt_id       UUID REFERENCES documents (id),
	match_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_type       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant_unlinked
	ON transactions (tenant_id, receipt_id) WHERE receipt_id IS NULL;

CREATE TABLE IF NOT EXISTS tax_analyses (
	id                 UUID PRIMARY KEY,
	tenant_id          UUID NOT NULL,
	transaction_id     UUID NOT NULL UNIQUE REFERENCES transactions (id) ON DELETE CASCADE,
	classification     TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	justification      TEXT NOT NULL DEFAULT '',
	legal_citation     TEXT NOT NULL DEFAULT '',
	risk_level         TEXT NOT NULL DEFAULT '',
	prompt_tokens      INT NOT NULL DEFAULT 0,
	completion_tokens  INT NOT NULL DEFAULT 0,
	total_tokens       INT NOT NULL DEFAULT 0,
	model_version      TEXT NOT NULL DEFAULT '',
	is_manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
