// Package postgres implements the user registry over PostgreSQL. Records are
// stored document-style: the identification number is the key and the record
// body lives in a JSONB column, giving full-overwrite, last-write-wins
// semantics on every put.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/padronlabs/padron/models"
)

const initSchema = `
CREATE TABLE IF NOT EXISTS usuarios (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

type userRepo struct {
	db *sql.DB
}

// Open connects to the database and ensures the registry table exists.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	if _, err := db.ExecContext(ctx, initSchema); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

// NewUserRepository creates a registry repository over an open connection.
func NewUserRepository(db *sql.DB) models.UserRepository {
	return &userRepo{db: db}
}

func (repo *userRepo) Put(ctx context.Context, id string, user *models.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	const q = `INSERT INTO usuarios (id, data, created_at, updated_at)
	           VALUES ($1, $2, $3, $3)
	           ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	_, err = repo.db.ExecContext(ctx, q, id, data, time.Now().UTC())

	return err
}

func (repo *userRepo) All(ctx context.Context) ([]models.UserRecord, error) {
	const q = `SELECT data FROM usuarios`

	rows, err := repo.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ans []models.UserRecord

	for rows.Next() {
		var data []byte

		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var user models.UserRecord

		if err := json.Unmarshal(data, &user); err != nil {
			return nil, err
		}

		ans = append(ans, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}
