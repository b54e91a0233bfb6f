// Package carddata looks up card details by name or hint.
//
// The engine treats lookup as a black box with high and variable latency;
// this package provides the production implementation: a rate-limited HTTP
// client against a Scryfall-style named-card endpoint, with an optional
// SQLite cache in front of it.
package carddata

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no card matches the hint.
var ErrNotFound = errors.New("card not found")

// Card is the subset of card details the renderer displays.
type Card struct {
	Name       string   `json:"name"`
	ManaCost   string   `json:"mana_cost,omitempty"`
	TypeLine   string   `json:"type_line,omitempty"`
	OracleText string   `json:"oracle_text,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	Rarity     string   `json:"rarity,omitempty"`
	SetCode    string   `json:"set,omitempty"`
}

// Provider resolves a card hint to card details.
//
// Implementations must be safe for concurrent use: the enrichment worker
// pool calls Lookup from multiple goroutines.
type Provider interface {
	// Lookup returns the card matching hint, ErrNotFound when the hint
	// resolves to nothing, or another error for transport failures.
	Lookup(ctx context.Context, hint string) (*Card, error)
}
