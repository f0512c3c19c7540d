package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// ChangeChannel 变更通知的 LISTEN/NOTIFY 通道
const ChangeChannel = "alfred_changes"

// Schema 数据库结构（幂等）
// 触发器在 movement_data / emergency_contacts 变更时通过 pg_notify 发送 JSON 通知
const Schema = `
CREATE TABLE IF NOT EXISTS movement_types (
	kind  SMALLINT PRIMARY KEY,
	label TEXT NOT NULL
);

INSERT INTO movement_types (kind, label) VALUES (1, 'lying'), (2, 'sitting'), (3, 'active')
ON CONFLICT (kind) DO NOTHING;

CREATE TABLE IF NOT EXISTS movement_data (
	segment_id UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	kind       SMALLINT NOT NULL REFERENCES movement_types (kind),
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ,
	CHECK (ended_at IS NULL OR ended_at >= started_at)
);

CREATE INDEX IF NOT EXISTS idx_movement_data_user_started ON movement_data (user_id, started_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_movement_data_one_open ON movement_data (user_id) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS emergency_contacts (
	contact_id   UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	first_name   TEXT NOT NULL,
	last_name    TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_emergency_contacts_user ON emergency_contacts (user_id, created_at);

CREATE TABLE IF NOT EXISTS alert_events (
	event_id     UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	trigger      TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	successes    INTEGER NOT NULL,
	total        INTEGER NOT NULL,
	failed_data  JSONB NOT NULL DEFAULT '[]',
	triggered_at TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_events_user_triggered ON alert_events (user_id, triggered_at DESC);

CREATE OR REPLACE FUNCTION alfred_notify_change() RETURNS trigger AS $$
DECLARE
	rec RECORD;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('alfred_changes', json_build_object(
		'table', TG_TABLE_NAME,
		'operation', TG_OP,
		'user_id', rec.user_id
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS movement_data_notify ON movement_data;
CREATE TRIGGER movement_data_notify AFTER INSERT OR UPDATE OR DELETE ON movement_data
	FOR EACH ROW EXECUTE FUNCTION alfred_notify_change();

DROP TRIGGER IF EXISTS emergency_contacts_notify ON emergency_contacts;
CREATE TRIGGER emergency_contacts_notify AFTER INSERT OR UPDATE OR DELETE ON emergency_contacts
	FOR EACH ROW EXECUTE FUNCTION alfred_notify_change();
`

// EnsureSchema 创建表、索引与通知触发器
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
