package mtgalog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/carddata"
	"github.com/mtgalog/mtgalog-go/internal/enrich"
	"github.com/mtgalog/mtgalog-go/internal/merger"
	"github.com/mtgalog/mtgalog-go/internal/position"
)

// Option configures an Engine using the functional options pattern.
type Option func(*engineConfig)

// engineConfig holds internal configuration for the engine.
type engineConfig struct {
	logDir        string
	logPath       string
	fromBeginning bool
	pollInterval  time.Duration

	enrichEnabled bool
	enrichWorkers int
	enrichQueue   int
	enrichWait    time.Duration
	provider      Provider

	store        position.Store
	stateDBPath  string
	saveInterval time.Duration

	logger   *slog.Logger
	patterns BusinessMatcher
	filter   *kindFilter
}

// kindFilter is a compiled include/exclude set over annotation kinds.
// Exclude takes precedence over include.
type kindFilter struct {
	include map[Kind]struct{}
	exclude map[Kind]struct{}
}

// Allows reports whether annotations of kind k pass the filter.
func (f *kindFilter) Allows(k Kind) bool {
	if f == nil {
		return true
	}
	if f.exclude != nil {
		if _, ok := f.exclude[k]; ok {
			return false
		}
	}
	if f.include != nil {
		_, ok := f.include[k]
		return ok
	}
	return true
}

// DefaultPositionSaveInterval is how often the engine persists its log
// position between frames. The position is also saved on shutdown.
const DefaultPositionSaveInterval = 2 * time.Second

// defaultEngineConfig returns an engineConfig with sensible defaults.
func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		pollInterval:  2 * time.Second,
		enrichEnabled: true,
		enrichWorkers: enrich.DefaultWorkers,
		enrichQueue:   enrich.DefaultQueueSize,
		enrichWait:    merger.DefaultWait,
		saveInterval:  DefaultPositionSaveInterval,
	}
}

// applyOptions applies functional options to an engineConfig.
func applyOptions(opts []Option) *engineConfig {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *engineConfig) validate() error {
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	}
	if c.enrichWorkers <= 0 {
		return fmt.Errorf("enrichment workers must be positive, got %d", c.enrichWorkers)
	}
	if c.enrichQueue <= 0 {
		return fmt.Errorf("enrichment queue size must be positive, got %d", c.enrichQueue)
	}
	if c.enrichWait <= 0 {
		return fmt.Errorf("enrichment wait must be positive, got %v", c.enrichWait)
	}
	if c.saveInterval <= 0 {
		return fmt.Errorf("position save interval must be positive, got %v", c.saveInterval)
	}
	if c.store != nil && c.stateDBPath != "" {
		return fmt.Errorf("WithPositionStore and WithStateDB are mutually exclusive")
	}
	return nil
}

// WithLogDir sets the Arena log directory.
// If not set, auto-detects from platform defaults.
// Can also be set via the MTGALOG_LOGDIR environment variable.
func WithLogDir(dir string) Option {
	return func(c *engineConfig) {
		c.logDir = dir
	}
}

// WithLogPath pins the engine to one specific log file instead of
// following the newest Player log in the directory. Rotation to other
// files is not followed in this mode.
func WithLogPath(path string) Option {
	return func(c *engineConfig) {
		c.logPath = path
	}
}

// WithFromBeginning reads the log from the start instead of resuming from
// the stored position. Default: false (resume).
func WithFromBeginning(from bool) Option {
	return func(c *engineConfig) {
		c.fromBeginning = from
	}
}

// WithPollInterval sets how often the engine re-checks file identity and
// looks for newer log files. Default: 2 seconds.
func WithPollInterval(interval time.Duration) Option {
	return func(c *engineConfig) {
		c.pollInterval = interval
	}
}

// WithEnrichment enables or disables card-detail enrichment.
// Default: enabled. When disabled, records are emitted immediately
// without card details.
func WithEnrichment(enabled bool) Option {
	return func(c *engineConfig) {
		c.enrichEnabled = enabled
	}
}

// WithEnrichmentWorkers sets the size of the enrichment worker pool.
// Default: 4.
func WithEnrichmentWorkers(n int) Option {
	return func(c *engineConfig) {
		c.enrichWorkers = n
	}
}

// WithEnrichmentQueueSize sets the bounded request queue length.
// Default: 64.
func WithEnrichmentQueueSize(n int) Option {
	return func(c *engineConfig) {
		c.enrichQueue = n
	}
}

// WithEnrichmentWait bounds how long a record holds its place in the
// output line waiting for card details before it is emitted with
// placeholders. Default: 300ms.
func WithEnrichmentWait(d time.Duration) Option {
	return func(c *engineConfig) {
		c.enrichWait = d
	}
}

// WithProvider sets the card-detail provider. If not set, the public
// card API is used with caching when a state database is configured.
func WithProvider(p Provider) Option {
	return func(c *engineConfig) {
		if p != nil {
			c.provider = p
		}
	}
}

// WithPositionStore sets the store used to persist the log position
// between runs. Default: in-memory (no persistence).
func WithPositionStore(s PositionStore) Option {
	return func(c *engineConfig) {
		if s != nil {
			c.store = s
		}
	}
}

// WithStateDB persists the log position and the card-lookup cache in a
// SQLite database at path, creating it if needed.
// Mutually exclusive with WithPositionStore.
func WithStateDB(path string) Option {
	return func(c *engineConfig) {
		c.stateDBPath = path
	}
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithPatterns sets the matcher for outbound client business events,
// typically a pattern.Set loaded from a YAML file.
func WithPatterns(m BusinessMatcher) Option {
	return func(c *engineConfig) {
		c.patterns = m
	}
}

// WithIncludeKinds filters output to annotations of the given kinds.
// If called multiple times, only the last call takes effect.
func WithIncludeKinds(kinds ...Kind) Option {
	return func(c *engineConfig) {
		if c.filter == nil {
			c.filter = &kindFilter{}
		}
		c.filter.include = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			c.filter.include[k] = struct{}{}
		}
	}
}

// WithExcludeKinds filters out annotations of the given kinds.
// Exclude takes precedence over include.
// If called multiple times, only the last call takes effect.
func WithExcludeKinds(kinds ...Kind) Option {
	return func(c *engineConfig) {
		if c.filter == nil {
			c.filter = &kindFilter{}
		}
		c.filter.exclude = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			c.filter.exclude[k] = struct{}{}
		}
	}
}

// newProvider builds the configured card-detail provider chain.
func (c *engineConfig) newProvider(cache *carddata.Cache, log *slog.Logger) carddata.Provider {
	var p carddata.Provider
	if c.provider != nil {
		p = c.provider
	} else {
		p = carddata.NewHTTPProvider(carddata.HTTPConfig{Logger: log})
	}
	if cache != nil {
		p = carddata.NewCachingProvider(p, cache, log)
	}
	return p
}
