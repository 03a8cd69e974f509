// Package sqlite implements the user registry over a local SQLite file,
// mainly for development and tests. Same document-style shape as the
// PostgreSQL implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/padronlabs/padron/models"
)

type userRepo struct {
	db *sql.DB
}

func New(path string) (models.UserRepository, error) {
	db, err := initDatabase(path)
	if err != nil {
		return nil, err
	}

	return &userRepo{db: db}, nil
}

func (repo *userRepo) Put(ctx context.Context, id string, user *models.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	const q = `INSERT INTO usuarios (id, data, created_at, updated_at)
	           VALUES (?, ?, ?, ?)
	           ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

	now := time.Now().UTC().Unix()

	_, err = repo.db.ExecContext(ctx, q, id, string(data), now, now)

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
		var data string

		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var user models.UserRecord

		if err := json.Unmarshal([]byte(data), &user); err != nil {
			return nil, err
		}

		ans = append(ans, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}

func initDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, createSchema(db)
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS usuarios (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)

	return err
}
