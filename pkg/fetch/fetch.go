// Package fetch provides the data-fetch collaborators that load tab rows.
// Fetchers never retry or cache; failures are returned to the caller.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/prodtrack/config"
	"github.com/grovetools/prodtrack/errors"
	"github.com/grovetools/prodtrack/pkg/store"
)

// Row is one record of a list query.
type Row map[string]interface{}

// Params are named query parameters.
type Params map[string]interface{}

// Fetcher runs a named list query.
type Fetcher interface {
	Fetch(ctx context.Context, query string, params Params) ([]Row, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, query string, params Params) ([]Row, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, query string, params Params) ([]Row, error) {
	return f(ctx, query, params)
}

// New builds the fetcher selected by cfg.
func New(ctx context.Context, cfg config.FetchConfig) (Fetcher, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(nil), nil
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.DSN, cfg.Queries)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "http":
		return NewHTTP(cfg.BaseURL, cfg.RowsPath, timeout), nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown fetch backend: %s", cfg.Backend))
	}
}

// ResolveParams reads each name as a store variable. Names whose variable is
// absent or nil are returned in missing, sorted.
func ResolveParams(st *store.Store, names ...string) (Params, []string) {
	params := make(Params, len(names))
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		key := strings.TrimPrefix(name, store.VarPrefix)
		v := st.GetVar(store.VarKey(key))
		if v == nil {
			missing = append(missing, key)
			continue
		}
		params[key] = v
	}
	sort.Strings(missing)
	return params, missing
}
