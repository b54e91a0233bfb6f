package carddata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultCacheTTL is how long cached lookups stay fresh. Card details are
// near-immutable, so the TTL mostly bounds how long a stale not-found
// (e.g. a brand-new set) lingers.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache persists lookup results in SQLite, sharing the engine's state
// database.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// NewCache prepares the cards table on db. A zero ttl uses DefaultCacheTTL.
func NewCache(db *sql.DB, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	schema := `
	CREATE TABLE IF NOT EXISTS cards (
		hint TEXT PRIMARY KEY,
		card_json TEXT,
		not_found INTEGER NOT NULL DEFAULT 0,
		fetched_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrating card cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// get returns the cached outcome for hint. ok is false on miss or expiry.
// A cached not-found is returned as (nil, true, nil) with notFound set.
func (c *Cache) get(ctx context.Context, hint string) (card *Card, notFound, ok bool, err error) {
	var cardJSON sql.NullString
	var nf int
	var fetchedAt int64
	row := c.db.QueryRowContext(ctx,
		"SELECT card_json, not_found, fetched_at FROM cards WHERE hint = ?", hint)
	if err := row.Scan(&cardJSON, &nf, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, false, nil
		}
		return nil, false, false, err
	}

	if time.Since(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, false, nil
	}
	if nf != 0 {
		return nil, true, true, nil
	}
	if !cardJSON.Valid {
		return nil, false, false, nil
	}
	var cd Card
	if err := json.Unmarshal([]byte(cardJSON.String), &cd); err != nil {
		// An undecodable row is a miss, not a failure.
		return nil, false, false, nil
	}
	return &cd, false, true, nil
}

// put records a lookup outcome. Transport errors are never cached.
func (c *Cache) put(ctx context.Context, hint string, card *Card, notFound bool) error {
	var cardJSON sql.NullString
	if card != nil {
		data, err := json.Marshal(card)
		if err != nil {
			return err
		}
		cardJSON = sql.NullString{String: string(data), Valid: true}
	}
	nf := 0
	if notFound {
		nf = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cards (hint, card_json, not_found, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hint) DO UPDATE SET
			card_json = excluded.card_json,
			not_found = excluded.not_found,
			fetched_at = excluded.fetched_at`,
		hint, cardJSON, nf, time.Now().Unix())
	return err
}

// CachingProvider wraps a Provider with a Cache. Positive results and
// not-found outcomes are cached; transport errors fall through untouched so
// the next request retries the network.
type CachingProvider struct {
	inner Provider
	cache *Cache
	log   *slog.Logger
}

// NewCachingProvider wraps inner with cache.
func NewCachingProvider(inner Provider, cache *Cache, log *slog.Logger) *CachingProvider {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CachingProvider{inner: inner, cache: cache, log: log}
}

// Lookup implements Provider.
func (p *CachingProvider) Lookup(ctx context.Context, hint string) (*Card, error) {
	card, notFound, ok, err := p.cache.get(ctx, hint)
	if err != nil {
		// Cache trouble degrades to a direct lookup.
		p.log.Debug("card cache read failed", "hint", hint, "error", err)
	} else if ok {
		if notFound {
			return nil, ErrNotFound
		}
		return card, nil
	}

	card, err = p.inner.Lookup(ctx, hint)
	switch {
	case err == nil:
		if cerr := p.cache.put(ctx, hint, card, false); cerr != nil {
			p.log.Debug("card cache write failed", "hint", hint, "error", cerr)
		}
		return card, nil
	case errors.Is(err, ErrNotFound):
		if cerr := p.cache.put(ctx, hint, nil, true); cerr != nil {
			p.log.Debug("card cache write failed", "hint", hint, "error", cerr)
		}
		return nil, err
	default:
		return nil, err
	}
}
