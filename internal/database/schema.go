package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the full DDL for the ledger. Statements are idempotent so
// Migrate can run on every startup.
//
// payment_code carries the unique index the generator relies on: a
// collision surfaces as a 23505 on commit and the caller retries with a
// fresh draw. audit_entries has no FK to registrations on purpose; history
// must outlive deleted records.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS access_levels (
	id             UUID PRIMARY KEY,
	event_id       UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	capacity       INTEGER,
	price          BIGINT NOT NULL DEFAULT 0,
	public         BOOLEAN NOT NULL DEFAULT FALSE,
	hidden         BOOLEAN NOT NULL DEFAULT FALSE,
	requires_login BOOLEAN NOT NULL DEFAULT FALSE,
	has_comment    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_levels_event_id ON access_levels (event_id);

CREATE TABLE IF NOT EXISTS registrations (
	id              UUID PRIMARY KEY,
	event_id        UUID REFERENCES events(id) ON DELETE CASCADE,
	access_level_id UUID NOT NULL REFERENCES access_levels(id),
	name            TEXT NOT NULL,
	email           TEXT NOT NULL,
	student_number  TEXT NOT NULL DEFAULT '',
	comment         TEXT NOT NULL DEFAULT '',
	paid            BIGINT NOT NULL DEFAULT 0,
	price           BIGINT NOT NULL DEFAULT 0,
	payment_code    TEXT NOT NULL,
	barcode         TEXT NOT NULL DEFAULT '',
	barcode_data    TEXT NOT NULL DEFAULT '',
	checked_in_at   TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_payment_code ON registrations (payment_code);
CREATE INDEX IF NOT EXISTS idx_registrations_access_level_id ON registrations (access_level_id);
CREATE INDEX IF NOT EXISTS idx_registrations_event_id ON registrations (event_id);

CREATE TABLE IF NOT EXISTS audit_entries (
	id              UUID PRIMARY KEY,
	registration_id UUID NOT NULL,
	field           TEXT NOT NULL,
	old_value       TEXT NOT NULL,
	new_value       TEXT NOT NULL,
	actor           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_registration_field
	ON audit_entries (registration_id, field, created_at);
`

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
