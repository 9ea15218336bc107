package msglog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/persistence"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbound_messages (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	id                  TEXT NOT NULL UNIQUE,
	provider_message_id TEXT NOT NULL,
	owner_id            TEXT NOT NULL,
	conversation_id     TEXT NOT NULL,
	channel_id          TEXT NOT NULL,
	recipient           TEXT NOT NULL,
	kind                TEXT NOT NULL,
	body                TEXT NOT NULL,
	flow_id             TEXT NOT NULL DEFAULT '',
	step_id             TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbound_conversation ON outbound_messages (owner_id, conversation_id, seq);
`

var _ Log = new(sqliteLog)

type sqliteLog struct {
	db *sql.DB
}

func NewSqliteLog(path string) (*sqliteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening message log %s: %w", path, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating message log schema: %w", err)
	}
	return &sqliteLog{db: db}, nil
}

func (s *sqliteLog) Record(ctx context.Context, rec model.OutboundRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbound_messages (id, provider_message_id, owner_id, conversation_id, channel_id, recipient, kind, body, flow_id, step_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Id, rec.ProviderMessageId, rec.OwnerId, rec.ConversationId, rec.ChannelId, rec.Recipient,
		string(rec.Kind), rec.Body, rec.FlowId, rec.StepId, rec.CreatedAt.UnixMilli())
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *sqliteLog) List(ctx context.Context, ownerId string, conversationId string, limit int) ([]model.OutboundRecord, error) {
	query := `SELECT id, provider_message_id, owner_id, conversation_id, channel_id, recipient, kind, body, flow_id, step_id, created_at
		FROM (SELECT * FROM outbound_messages WHERE owner_id = ? AND conversation_id = ? ORDER BY seq DESC`
	args := []any{ownerId, conversationId}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()

	var out []model.OutboundRecord
	for rows.Next() {
		var rec model.OutboundRecord
		var kind string
		var created int64
		if err := rows.Scan(&rec.Id, &rec.ProviderMessageId, &rec.OwnerId, &rec.ConversationId, &rec.ChannelId,
			&rec.Recipient, &kind, &rec.Body, &rec.FlowId, &rec.StepId, &created); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		rec.Kind = model.OutboundKind(kind)
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}

func (s *sqliteLog) Close() error {
	return s.db.Close()
}
