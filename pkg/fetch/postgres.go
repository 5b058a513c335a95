package fetch

import (
	"context"
	"fmt"

	"github.com/grovetools/prodtrack/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres runs configured SQL per list query. Parameters bind by name, so
// SQL refers to them as @typeID, @acctID and so on.
type Postgres struct {
	pool    *pgxpool.Pool
	queries map[string]string
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, queries map[string]string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("failed to parse DSN: %v", err))
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.StorageFailed("postgres", fmt.Errorf("failed to create connection pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.StorageFailed("postgres", fmt.Errorf("failed to ping database: %w", err))
	}

	return &Postgres{pool: pool, queries: queries}, nil
}

// SQL returns the statement configured for query.
func (p *Postgres) SQL(query string) (string, bool) {
	sql, ok := p.queries[query]
	return sql, ok
}

// Fetch implements Fetcher.
func (p *Postgres) Fetch(ctx context.Context, query string, params Params) ([]Row, error) {
	sql, ok := p.SQL(query)
	if !ok {
		return nil, errors.FetchFailed(query, fmt.Errorf("no SQL configured"))
	}

	rows, err := p.pool.Query(ctx, sql, namedArgs(params))
	if err != nil {
		return nil, errors.FetchFailed(query, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.FetchFailed(query, err)
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func namedArgs(params Params) pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(params))
	for k, v := range params {
		args[k] = v
	}
	return args
}
