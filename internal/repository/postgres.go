// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mouhalis/voiceval/internal/prompt"
)

// Postgres is the database-backed Store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

func (p *Postgres) SystemPrompt(ctx context.Context) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key=$1`,
		systemPromptKey,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && value == "") {
		return prompt.DefaultSystemPrompt, nil
	}
	if err != nil {
		p.logger.Error("read system prompt failed", "error", err)
		return "", err
	}
	return value, nil
}

func (p *Postgres) SetSystemPrompt(ctx context.Context, template string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, systemPromptKey, template)
	if err != nil {
		p.logger.Error("save system prompt failed", "error", err)
	}
	return err
}
