package lineage

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MaxCells bounds the number of cells a single matrix may hold.
const MaxCells = 1 << 28

// CheckDims validates a rows x cols shape for the operation named by opcode.
func CheckDims(opcode string, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return &ShapeError{Opcode: opcode, Left: [2]int{rows, cols}}
	}
	if cols > MaxCells/rows {
		return &SizeError{Opcode: opcode, Rows: rows, Cols: cols}
	}
	return nil
}

// Source yields a lineage trace as newline-separated records.
type Source interface {
	LineageTrace() (string, error)
}

// Context is an in-process execution context. Handles created by a Context
// are valid until Close.
//
// Thread-safety: all methods are safe for concurrent use.
type Context struct {
	mu     sync.Mutex
	closed bool
	cache  *reuseCache
	logger *slog.Logger
	id     string
	ops    int64
}

// Option configures a Context.
type Option func(*Context)

// WithCacheSize bounds the reuse cache. Zero or negative disables reuse.
func WithCacheSize(n int) Option {
	return func(c *Context) {
		c.cache = newReuseCache(n)
	}
}

// WithLogger sets the logger for operation and cache events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// Open creates a new Context.
func Open(opts ...Option) *Context {
	c := &Context{
		cache:  newReuseCache(DefaultCacheSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		id:     uuid.Must(uuid.NewV7()).String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug("lineage context opened", "context_id", c.id)
	return c
}

// ID returns the context's UUIDv7 identifier, used to correlate logs.
func (c *Context) ID() string {
	return c.id
}

// Close releases cached results. Handles of a closed context report
// ErrContextClosed. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	stats := c.cache.snapshot()
	c.cache.reset()
	c.logger.Debug("lineage context closed",
		"context_id", c.id,
		"operations", c.ops,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
	)
	return nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Stats returns a snapshot of reuse-cache counters.
func (c *Context) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.snapshot()
}

// Full creates a rows x cols matrix with every cell set to value.
func (c *Context) Full(rows, cols int, value float64) *Matrix {
	item := newItem(OpRand, []string{
		formatFloat(float64(rows)),
		formatFloat(float64(cols)),
		formatFloat(value),
	})
	if err := CheckDims(OpRand, rows, cols); err != nil {
		return &Matrix{ctx: c, item: item, err: err}
	}
	return c.evaluate(item, rows, cols, func() []float64 {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = value
		}
		return data
	})
}

// evaluate returns a handle for item, computing its values with compute
// unless the reuse cache already holds them.
func (c *Context) evaluate(item *Item, rows, cols int, compute func() []float64) *Matrix {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Matrix{ctx: c, item: item, err: ErrContextClosed}
	}
	c.ops++

	if e, ok := c.cache.get(item.Key()); ok {
		c.logger.Debug("lineage reuse hit", "opcode", item.Opcode, "key", item.Key()[:12])
		return &Matrix{ctx: c, item: item, rows: e.rows, cols: e.cols, data: e.data}
	}

	data := compute()
	c.cache.put(&cacheEntry{key: item.Key(), rows: rows, cols: cols, data: data})
	return &Matrix{ctx: c, item: item, rows: rows, cols: cols, data: data}
}
