package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hatchling/journal/internal/models"
	"github.com/lib/pq"
)

const entryColumns = `entry_id, content, media_url, transcription, tags, date_of_memory,
		timestamp_created, timestamp_updated, author_id, privacy, source_type, deleted_flag, journal_id`

// PostgresEntryRepository stores journal entries.
type PostgresEntryRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresEntryRepository creates a new PostgresEntryRepository using the provided *sql.DB.
func NewPostgresEntryRepository(db *sql.DB) *PostgresEntryRepository {
	return &PostgresEntryRepository{DB: db}
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var e models.Entry
	err := row.Scan(
		&e.ID, &e.Content, &e.MediaURL, &e.Transcription, pq.Array(&e.Tags), &e.DateOfMemory,
		&e.CreatedAt, &e.UpdatedAt, &e.AuthorID, &e.Privacy, &e.Source, &e.Deleted, &e.JournalID,
	)
	if err != nil {
		return nil, err
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

// Create inserts a new entry. The caller assigns ID and timestamps.
func (r *PostgresEntryRepository) Create(ctx context.Context, e *models.Entry) error {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12)
	`, e.ID, e.Content, e.MediaURL, e.Transcription, pq.Array(tags), e.DateOfMemory,
		e.CreatedAt, e.UpdatedAt, e.AuthorID, e.Privacy, e.Source, e.JournalID)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// List returns one page of the author's live entries matching f together with
// the number of entries matching f across all pages.
func (r *PostgresEntryRepository) List(ctx context.Context, f models.EntryFilter) ([]models.Entry, int, error) {
	where := []string{"author_id = $1", "journal_id = $2", "deleted_flag = false"}
	args := []any{f.AuthorID, f.JournalID}

	if f.Tag != "" {
		args = append(args, f.Tag)
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("date_of_memory >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("date_of_memory <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM entries WHERE %s ORDER BY timestamp_created %s LIMIT $%d OFFSET $%d`,
		entryColumns, cond, order, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.Entry, 0, f.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return entries, total, nil
}

// Get fetches a live entry owned by authorID.
func (r *PostgresEntryRepository) Get(ctx context.Context, authorID, id string) (*models.Entry, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE entry_id = $1 AND author_id = $2 AND deleted_flag = false
	`, id, authorID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// Update applies the non-nil fields of p to a live entry owned by authorID.
func (r *PostgresEntryRepository) Update(ctx context.Context, authorID, id string, p models.EntryPatch, at time.Time) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Content != nil {
		set("content", *p.Content)
	}
	if p.Tags != nil {
		set("tags", pq.Array(p.Tags))
	}
	if p.DateOfMemory != nil {
		set("date_of_memory", *p.DateOfMemory)
	}
	if p.Privacy != nil {
		set("privacy", *p.Privacy)
	}
	if p.MediaURL != nil {
		set("media_url", *p.MediaURL)
	}
	if p.Transcription != nil {
		set("transcription", *p.Transcription)
	}
	set("timestamp_updated", at)

	args = append(args, id, authorID)
	query := fmt.Sprintf(`UPDATE entries SET %s WHERE entry_id = $%d AND author_id = $%d AND deleted_flag = false`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return expectOneRow(res)
}

// SoftDelete flags a live entry owned by authorID as deleted.
func (r *PostgresEntryRepository) SoftDelete(ctx context.Context, authorID, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE entries SET deleted_flag = true, timestamp_updated = $3
		WHERE entry_id = $1 AND author_id = $2 AND deleted_flag = false
	`, id, authorID, at)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
