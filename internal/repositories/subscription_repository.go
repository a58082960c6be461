package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"iapBack/internal/models"
)

var (
	// ErrNotFound wraps sql.ErrNoRows for clarity.
	ErrNotFound = errors.New("not found")
	// ErrTransactionOwnedByAnotherUser is returned when a transaction id is
	// already stored for a different user.
	ErrTransactionOwnedByAnotherUser = errors.New("transaction belongs to another user")
	// ErrUnknownUser is returned when the user row referenced by a write does not exist.
	ErrUnknownUser = errors.New("user does not exist")
)

const subscriptionColumns = `id, user_id, platform, product_id, transaction_id, status, expires_at, raw_data, created_at, updated_at`

type SubscriptionRepository struct {
	DB *sql.DB

	dialect    Dialect
	table      string
	usersTable string
	now        func() time.Time

	once sync.Once
	err  error
}

// NewSubscriptionRepository expects table names already validated by config.
func NewSubscriptionRepository(db *sql.DB, dialect Dialect, table, usersTable string) *SubscriptionRepository {
	return &SubscriptionRepository{
		DB:         db,
		dialect:    dialect,
		table:      table,
		usersTable: usersTable,
		now:        time.Now,
	}
}

func (r *SubscriptionRepository) ensureSchema(ctx context.Context) error {
	r.once.Do(func() {
		r.err = r.Migrate(ctx)
	})
	return r.err
}

// Migrate creates the subscriptions table and its indexes if missing.
func (r *SubscriptionRepository) Migrate(ctx context.Context) error {
	for _, stmt := range subscriptionDDL(r.dialect, r.table, r.usersTable) {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", r.table, err)
		}
	}
	return nil
}

// Upsert stores a valid verification result for userID, keyed by the
// result's original transaction id, and returns the stored row.
func (r *SubscriptionRepository) Upsert(ctx context.Context, userID int64, result models.VerificationResult) (models.Subscription, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Subscription{}, err
	}
	if result.OriginalTransactionID == "" {
		return models.Subscription{}, fmt.Errorf("original_transaction_id is required")
	}

	raw, err := json.Marshal(result.RawData)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("marshal raw data: %w", err)
	}

	var expires any
	if result.ExpiresAt != nil {
		expires = result.ExpiresAt.UTC()
	}
	now := r.now().UTC()

	_, err = r.DB.ExecContext(ctx, upsertSQL(r.dialect, r.table),
		userID,
		string(result.Platform),
		result.ProductID,
		result.OriginalTransactionID,
		string(result.Status),
		expires,
		string(raw),
		now,
		now,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return models.Subscription{}, ErrUnknownUser
		}
		return models.Subscription{}, err
	}

	sub, err := r.Get(ctx, userID, result.OriginalTransactionID)
	if errors.Is(err, ErrNotFound) {
		return models.Subscription{}, ErrTransactionOwnedByAnotherUser
	}
	return sub, err
}

// Get returns the row for (userID, transactionID).
func (r *SubscriptionRepository) Get(ctx context.Context, userID int64, transactionID string) (models.Subscription, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return models.Subscription{}, err
	}
	query := r.dialect.rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE user_id = ? AND transaction_id = ? LIMIT 1`,
		subscriptionColumns, r.table))

	sub, err := scanSubscription(r.DB.QueryRowContext(ctx, query, userID, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscription{}, ErrNotFound
	}
	return sub, err
}

// ListByUser returns a user's subscriptions, most recently updated first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64, filter models.SubscriptionFilter) ([]models.Subscription, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	where := []string{"user_id = ?"}
	args := []any{userID}
	if filter.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, string(filter.Platform))
	}
	if filter.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, filter.ProductID)
	}

	query := r.dialect.rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY updated_at DESC, id DESC`,
		subscriptionColumns, r.table, strings.Join(where, " AND ")))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var (
		sub                       models.Subscription
		platform, status          string
		raw                       sql.NullString
		expires, created, updated nullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &platform, &sub.ProductID, &sub.TransactionID,
		&status, &expires, &raw, &created, &updated); err != nil {
		return models.Subscription{}, err
	}
	sub.Platform = models.Platform(platform)
	sub.Status = models.Status(status)
	sub.ExpiresAt = expires.ptr()
	sub.CreatedAt = created.Time
	sub.UpdatedAt = updated.Time
	if raw.Valid && raw.String != "" {
		sub.RawData = json.RawMessage(raw.String)
	}
	return sub, nil
}
