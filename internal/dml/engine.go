package dml

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/lindiff/internal/lineage"
)

// Version identifies the reference engine in its header line.
const Version = "1.0"

// Options configures Run.
type Options struct {
	// CacheSize bounds the lineage reuse cache. Zero selects
	// lineage.DefaultCacheSize; negative disables reuse.
	CacheSize int

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger
}

// Run parses and executes src in a fresh lineage context, writing engine
// output to w: one header line, the program's print output, and a
// three-line statistics footer.
//
// Syntax errors are returned before anything is written. Runtime errors are
// returned after the output produced so far; no footer is written then.
func Run(ctx context.Context, src string, w io.Writer, opts Options) error {
	prog, err := Parse(src)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cacheSize := opts.CacheSize
	if cacheSize == 0 {
		cacheSize = lineage.DefaultCacheSize
	}

	lctx := lineage.Open(lineage.WithCacheSize(cacheSize), lineage.WithLogger(logger))
	defer lctx.Close()

	if _, err := fmt.Fprintf(w, "dml reference engine %s (context %s)\n", Version, lctx.ID()); err != nil {
		return err
	}

	in := NewInterpreter(lctx, w, logger)
	if err := in.Exec(ctx, prog); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	stats := lctx.Stats()
	_, err = fmt.Fprintf(w, "Statistics:\nExecuted statements: %d\nReuse cache hits: %d\n",
		in.Statements(), stats.Hits)
	return err
}
