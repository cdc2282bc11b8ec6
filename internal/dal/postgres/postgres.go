package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/spf13/viper"
)

// Querier is the subset of pgx shared by the pool and a transaction, so
// repositories can run inside a unit of work.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// DB returns a database/sql view of the pool for sqlx repositories.
func (p *Client) DB() *sqlx.DB {
	return p.db
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() {
	_ = p.db.Close()
	p.pool.Close()
}

// MustNewClient creates a new Postgres client. Connection settings come from
// <PREFIX>_PG_HOST, <PREFIX>_PG_USER, <PREFIX>_PG_PASSWORD and <PREFIX>_PG_DB
// where PREFIX is postgres.env_prefix.
func MustNewClient() *Client {
	prefix := strings.ToUpper(viper.GetString("postgres.env_prefix"))
	connStr := fmt.Sprintf(
		"host=%s port=5432 user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv(prefix+"_PG_HOST"),
		os.Getenv(prefix+"_PG_USER"),
		os.Getenv(prefix+"_PG_PASSWORD"),
		os.Getenv(prefix+"_PG_DB"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		panic(err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		panic(err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		panic(err)
	}

	// Run migrations using goose with stdlib adapter
	if err := goose.SetDialect("postgres"); err != nil {
		panic(err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	if err := goose.Up(sqlDB, viper.GetString("postgres.migrations_path")); err != nil &&
		!errors.Is(err, goose.ErrNoNextVersion) {
		panic(err)
	}

	return &Client{
		pool: pool,
		db:   sqlx.NewDb(sqlDB, "pgx"),
	}
}
