package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserRepository reads the host application's users table. It never writes.
type UserRepository struct {
	DB *sql.DB

	dialect Dialect
	table   string
}

func NewUserRepository(db *sql.DB, dialect Dialect, table string) *UserRepository {
	return &UserRepository{DB: db, dialect: dialect, table: table}
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := r.dialect.rebind(fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ? LIMIT 1`, r.table))
	var one int
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
