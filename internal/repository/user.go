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

const userColumns = `user_id, name, phone_number, email, avatar, role, permissions, default_privacy,
		nudge_opt_in, nudge_frequency, account_created, last_active, subscription_status, stripe_customer_id`

// PostgresUserRepository implements account persistence using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.PhoneNumber, &u.Email, &u.Avatar, &u.Role, pq.Array(&u.Permissions),
		&u.DefaultPrivacy, &u.NudgeOptIn, &u.NudgeFrequency, &u.AccountCreated, &u.LastActive,
		&u.SubscriptionStatus, &u.StripeCustomerID,
	)
	if err != nil {
		return nil, err
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	return &u, nil
}

// Create inserts a new user. A duplicate phone number yields models.ErrAlreadyExists.
func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, u.ID, u.Name, u.PhoneNumber, u.Email, u.Avatar, u.Role, pq.Array(perms), u.DefaultPrivacy,
		u.NudgeOptIn, u.NudgeFrequency, u.AccountCreated, u.LastActive, u.SubscriptionStatus, u.StripeCustomerID)
	if isUniqueViolation(err) {
		return models.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "user_id", id)
}

// GetByPhone fetches a user by login phone number.
func (r *PostgresUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getBy(ctx, "phone_number", phone)
}

// Update applies the non-nil fields of p to the user.
func (r *PostgresUserRepository) Update(ctx context.Context, id string, p models.UserPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Avatar != nil {
		set("avatar", *p.Avatar)
	}
	if p.DefaultPrivacy != nil {
		set("default_privacy", *p.DefaultPrivacy)
	}
	if p.NudgeOptIn != nil {
		set("nudge_opt_in", *p.NudgeOptIn)
	}
	if p.NudgeFrequency != nil {
		set("nudge_frequency", *p.NudgeFrequency)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE user_id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOneRow(res)
}

// TouchLastActive records activity for the user.
func (r *PostgresUserRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_active = $2 WHERE user_id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}

// SetStripeCustomer links a Stripe customer id to the user.
func (r *PostgresUserRepository) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET stripe_customer_id = $2 WHERE user_id = $1`, id, customerID)
	if isUniqueViolation(err) {
		return models.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return expectOneRow(res)
}

// SetSubscriptionStatus stores the billing state of the user owning customerID.
func (r *PostgresUserRepository) SetSubscriptionStatus(ctx context.Context, customerID string, status models.SubscriptionStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET subscription_status = $2 WHERE stripe_customer_id = $1`, customerID, status)
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	return expectOneRow(res)
}
