package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hatchling/journal/internal/models"
	"github.com/lib/pq"
)

// PostgresUnknownSMSRepository queues inbound messages from numbers without an account.
type PostgresUnknownSMSRepository struct {
	DB *sql.DB
}

// NewPostgresUnknownSMSRepository creates a new PostgresUnknownSMSRepository.
func NewPostgresUnknownSMSRepository(db *sql.DB) *PostgresUnknownSMSRepository {
	return &PostgresUnknownSMSRepository{DB: db}
}

// Enqueue stores msg for later review.
func (r *PostgresUnknownSMSRepository) Enqueue(ctx context.Context, msg models.UnknownSMS) error {
	urls := msg.MediaURLs
	if urls == nil {
		urls = []string{}
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO unknown_sms (id, from_number, body, media_urls, received_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.FromNumber, msg.Body, pq.Array(urls), msg.ReceivedAt)
	if err != nil {
		return fmt.Errorf("enqueue unknown sms: %w", err)
	}
	return nil
}
