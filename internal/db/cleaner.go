package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartUnknownSMSCleaner periodically removes queued messages from unknown
// senders that are older than retention. Journal entries are never purged.
func StartUnknownSMSCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM unknown_sms
                     WHERE received_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean unknown sms queue", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned unknown sms queue", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
