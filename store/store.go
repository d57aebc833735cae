// Package store persists users, blueprints, deployed ranges and job
// records in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist or is not visible
// to the requesting owner.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned on unique constraint violations that map
// to a user-facing conflict, such as duplicate registration emails.
var ErrAlreadyExists = errors.New("already exists")

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Scope restricts owner-checked queries to a caller. Admin scopes see
// every owner's rows; a missing row and a row hidden by the owner check
// are both reported as ErrNotFound so existence never leaks.
type Scope struct {
	UserID int64
	Admin  bool
}

// UserScope scopes queries to a single non-admin user.
func UserScope(userID int64) Scope {
	return Scope{UserID: userID}
}

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  logr.Logger
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, uri string, log logr.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Bootstrap creates the schema if it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrapping schema: %w", err)
		}
	}
	s.log.V(1).Info("database schema up to date")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT        NOT NULL,
		email         TEXT        NOT NULL UNIQUE,
		password_hash TEXT        NOT NULL,
		is_admin      BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS secrets (
		user_id               BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		public_key            TEXT NOT NULL,
		encrypted_private_key TEXT NOT NULL,
		key_salt              TEXT NOT NULL,
		aws_access_key        TEXT,
		aws_secret_key        TEXT,
		aws_created_at        TIMESTAMPTZ,
		azure_client_id       TEXT,
		azure_client_secret   TEXT,
		azure_tenant_id       TEXT,
		azure_subscription_id TEXT,
		azure_created_at      TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS blueprint_ranges (
		id          BIGSERIAL PRIMARY KEY,
		owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name        TEXT   NOT NULL,
		description TEXT   NOT NULL DEFAULT '',
		provider    TEXT   NOT NULL,
		region      TEXT   NOT NULL,
		vnc         BOOLEAN NOT NULL DEFAULT FALSE,
		vpn         BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS blueprint_vpcs (
		id       BIGSERIAL PRIMARY KEY,
		range_id BIGINT REFERENCES blueprint_ranges(id) ON DELETE CASCADE,
		owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name     TEXT   NOT NULL,
		cidr     TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blueprint_subnets (
		id       BIGSERIAL PRIMARY KEY,
		vpc_id   BIGINT REFERENCES blueprint_vpcs(id) ON DELETE CASCADE,
		owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name     TEXT   NOT NULL,
		cidr     TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blueprint_hosts (
		id        BIGSERIAL PRIMARY KEY,
		subnet_id BIGINT REFERENCES blueprint_subnets(id) ON DELETE CASCADE,
		owner_id  BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		hostname  TEXT   NOT NULL,
		os        TEXT   NOT NULL,
		spec      TEXT   NOT NULL,
		size_gb   INT    NOT NULL,
		tags      TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS deployed_ranges (
		id                  UUID PRIMARY KEY,
		owner_id            BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name                TEXT   NOT NULL,
		description         TEXT   NOT NULL DEFAULT '',
		provider            TEXT   NOT NULL,
		region              TEXT   NOT NULL,
		vnc                 BOOLEAN NOT NULL DEFAULT FALSE,
		vpn                 BOOLEAN NOT NULL DEFAULT FALSE,
		state               TEXT   NOT NULL,
		deployed_at         TIMESTAMPTZ NOT NULL,
		jumpbox_resource_id TEXT   NOT NULL,
		jumpbox_public_ip   TEXT   NOT NULL,
		resources           JSONB  NOT NULL,
		blueprint           JSONB  NOT NULL,
		state_blob          JSONB  NOT NULL,
		ssh_private_key     TEXT   NOT NULL,
		ssh_public_key      TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id            BIGSERIAL PRIMARY KEY,
		arq_job_id    TEXT   NOT NULL UNIQUE,
		owner_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		job_name      TEXT   NOT NULL,
		job_try       INT    NOT NULL DEFAULT 0,
		enqueue_time  TIMESTAMPTZ NOT NULL,
		start_time    TIMESTAMPTZ,
		finish_time   TIMESTAMPTZ,
		status        TEXT   NOT NULL,
		result        JSONB,
		error_message TEXT   NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_owner_status_idx ON jobs (owner_id, status)`,
}

// isUniqueViolation reports whether err is a duplicate key error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound converts pgx.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
