// Package schema owns the movierank database schema: the vector and
// pg_search extensions, the four tables, and their vector/BM25 indexes.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// createStatements is the ordered DDL for a fresh schema. Extensions come
// first because the table definitions reference the vector type, and the BM25
// index requires pg_search.
var createStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE EXTENSION IF NOT EXISTS pg_search`,

	`CREATE TABLE IF NOT EXISTS movies (
		movie_id          INTEGER PRIMARY KEY,
		title             VARCHAR(500) NOT NULL,
		year              SMALLINT,
		genres            TEXT[] NOT NULL DEFAULT '{}',
		imdb_id           VARCHAR(20),
		tmdb_id           INTEGER,
		content_embedding vector(384),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id    INTEGER PRIMARY KEY,
		embedding  vector(384),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS ratings (
		user_id          INTEGER NOT NULL REFERENCES users(user_id),
		movie_id         INTEGER NOT NULL REFERENCES movies(movie_id),
		rating           REAL NOT NULL,
		rating_timestamp TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, movie_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		user_id       INTEGER NOT NULL REFERENCES users(user_id),
		movie_id      INTEGER NOT NULL REFERENCES movies(movie_id),
		tag           TEXT NOT NULL,
		tag_timestamp TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, movie_id, tag)
	)`,

	`CREATE INDEX IF NOT EXISTS movies_content_embedding_idx
		ON movies USING hnsw (content_embedding vector_cosine_ops)`,

	`CREATE INDEX IF NOT EXISTS users_embedding_idx
		ON users USING hnsw (embedding vector_cosine_ops)`,

	`CREATE INDEX IF NOT EXISTS ratings_movie_id_idx
		ON ratings (movie_id)`,

	`CREATE INDEX IF NOT EXISTS movies_search_idx
		ON movies USING bm25 (movie_id, title, genres)
		WITH (key_field='movie_id')`,
}

// dropStatements removes the movierank tables in FK-safe order.
// Extensions stay installed; other databases may share them.
var dropStatements = []string{
	`DROP TABLE IF EXISTS tags`,
	`DROP TABLE IF EXISTS ratings`,
	`DROP TABLE IF EXISTS users`,
	`DROP TABLE IF EXISTS movies`,
}

// Manager creates and drops the movierank schema.
type Manager struct {
	pool   *pgxpool.Pool
	logger movierank.Logger
}

// NewManager creates a schema manager. Panics if a dependency is nil;
// this indicates a dependency injection bug, not a runtime condition.
func NewManager(pool *pgxpool.Pool, logger movierank.Logger) *Manager {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Manager{pool: pool, logger: logger}
}

// Create applies the full schema DDL. Statements are idempotent, so running
// Create against an existing schema is a no-op.
func (m *Manager) Create(ctx context.Context) error {
	for _, stmt := range createStatements {
		m.logger.Verbose("Executing: %.60s...", stmt)
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema creation failed: %w: %w", movierank.ErrExecutionFailed, err)
		}
	}
	m.logger.Info("Schema ready: movies, users, ratings, tags (+ HNSW and BM25 indexes)")
	return nil
}

// Drop removes the movierank tables. Callers are responsible for approval.
func (m *Manager) Drop(ctx context.Context) error {
	for _, stmt := range dropStatements {
		m.logger.Verbose("Executing: %s", stmt)
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema drop failed: %w: %w", movierank.ErrExecutionFailed, err)
		}
	}
	m.logger.Info("Dropped tables: tags, ratings, users, movies")
	return nil
}

// TablesExist reports whether the movies table is present in the connected
// database.
func (m *Manager) TablesExist(ctx context.Context) (bool, error) {
	var regclass *string
	err := m.pool.QueryRow(ctx, `SELECT to_regclass('public.movies')::text`).Scan(&regclass)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing tables: %w", err)
	}
	return regclass != nil, nil
}

// EnsureDatabase creates the named database if it does not already exist.
// Must be called on a pool connected to the management database, since
// CREATE DATABASE cannot run inside a transaction on the target.
func EnsureDatabase(ctx context.Context, pool *pgxpool.Pool, name string, logger movierank.Logger) error {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for database %q: %w", name, err)
	}
	if exists {
		logger.Verbose("Database %q already exists", name)
		return nil
	}

	logger.Info("Creating database %q", name)
	// Identifiers cannot be bound as parameters.
	stmt := fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{name}.Sanitize())
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %q: %w: %w", name, movierank.ErrExecutionFailed, err)
	}
	return nil
}
