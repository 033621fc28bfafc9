package repository

import (
	"context"
	"database/sql"
	"fmt"

	"scout-gateway/internal/models"

	"go.uber.org/zap"
)

const createCommandAuditTable = `
	CREATE TABLE IF NOT EXISTS command_audit (
		id           BIGSERIAL PRIMARY KEY,
		kind         TEXT        NOT NULL,
		topic        TEXT        NOT NULL,
		payload      TEXT        NOT NULL,
		published_at TIMESTAMPTZ NOT NULL
	)
`

// CommandAuditRepository 命令审计仓库
type CommandAuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCommandAuditRepository 创建命令审计仓库
func NewCommandAuditRepository(db *sql.DB, logger *zap.Logger) *CommandAuditRepository {
	return &CommandAuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *CommandAuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCommandAuditTable); err != nil {
		return fmt.Errorf("failed to create command_audit table: %w", err)
	}
	return nil
}

// Record 写入一条审计记录
func (r *CommandAuditRepository) Record(ctx context.Context, entry models.CommandAudit) error {
	query := `
		INSERT INTO command_audit (kind, topic, payload, published_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, entry.Kind, entry.Topic, entry.Payload, entry.PublishedAt); err != nil {
		return fmt.Errorf("failed to insert command audit: %w", err)
	}
	return nil
}

// Recent 最近的审计记录，按时间倒序
func (r *CommandAuditRepository) Recent(ctx context.Context, limit int) ([]models.CommandAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, kind, topic, payload, published_at
		FROM command_audit
		ORDER BY published_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command audit: %w", err)
	}
	defer rows.Close()

	var out []models.CommandAudit
	for rows.Next() {
		var e models.CommandAudit
		if err := rows.Scan(&e.ID, &e.Kind, &e.Topic, &e.Payload, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command audit: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate command audit: %w", err)
	}
	return out, nil
}
