package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwolfley/gamepulse/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the schema-isolated Postgres persistence layer. Every pooled
// connection has its search_path set to the configured namespace so the
// same physical database can host multiple isolated deployments (tests
// included).
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// Open creates the connection pool and pings once so startup fails fast on
// a bad DSN. The search_path is pinned per checkout by acquire, not here.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MinConns = cfg.DBPoolMin
	poolCfg.MaxConns = cfg.DBPoolMax

	schema := cfg.DBSchema

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{pool: pool, schema: schema}
	return s, nil
}

// Close releases the pool after waiting out any in-flight acquisitions.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the namespace (Postgres schema) and applies every
// pending migration. Idempotent: safe to call on every startup.
// Schema-creation failure is fatal, per spec §4.2.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, s.schema)); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("store: acquire for migration: %w", err)
	}
	defer conn.Release()

	driver, err := pgxmigrate.WithInstance(conn.Conn(), &pgxmigrate.Config{
		SchemaName: s.schema,
	})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.schema, driver)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// acquire checks out a pooled connection and pins its search_path to the
// configured namespace, guaranteeing release on every exit path.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf(`SET search_path TO %q, public`, s.schema)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("store: set search_path: %w", err)
	}
	return conn, nil
}

// Healthy reports whether the pool can round-trip a trivial query.
func (s *Store) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx) == nil
}
