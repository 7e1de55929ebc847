package dyncol

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// Options configure a Context. Zero values select defaults.
type Options struct {
	// Logger receives diagnostics: WARN for caller misuse, ERROR for internal
	// failures, DEBUG for benign no-ops. Defaults to slog.Default() at the
	// time of logging.
	Logger *slog.Logger

	// Hasher hashes map keys. Defaults to XXHash.
	Hasher Hasher

	// Seed returns the per-map hash seed. Defaults to a random 32-bit value.
	Seed func() uint32
}

// Context carries the collaborators every container needs. Containers keep a
// pointer to the Context they were created with; copies inherit it.
type Context struct {
	logger *slog.Logger
	hasher Hasher
	seed   func() uint32
}

var defaultContext = NewContext(Options{})

func NewContext(opt Options) *Context {
	ctx := &Context{
		logger: opt.Logger,
		hasher: opt.Hasher,
		seed:   opt.Seed,
	}
	if ctx.hasher == nil {
		ctx.hasher = XXHash{}
	}
	if ctx.seed == nil {
		ctx.seed = rand.Uint32
	}
	return ctx
}

// DefaultContext returns the Context used by NewList and NewMap.
func DefaultContext() *Context {
	return defaultContext
}

func (c *Context) NewList() *List {
	return newListCap(c, MinListCapacity)
}

func (c *Context) NewMap() *Map {
	return newMapCap(c, MinMapCapacity)
}

func (c *Context) Logger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func (c *Context) Hasher() Hasher {
	return c.hasher
}

func (c *Context) log(level slog.Level, msg string, attrs ...slog.Attr) {
	logger := c.Logger()
	bg := context.Background()
	if !logger.Enabled(bg, level) {
		return
	}
	logger.LogAttrs(bg, level, msg, attrs...)
}

// report logs err at the level matching its severity and returns it.
func (c *Context) report(err error) error {
	level := slog.LevelWarn
	if SeverityOf(err) == SeverityError {
		level = slog.LevelError
	}
	c.log(level, "dyncol: "+err.Error(), slog.String("severity", SeverityOf(err).String()))
	return err
}

func (c *Context) debug(op, msg string, attrs ...slog.Attr) {
	c.log(slog.LevelDebug, "dyncol: "+op+": "+msg, attrs...)
}

func contextOf(ctx *Context) *Context {
	if ctx == nil {
		return defaultContext
	}
	return ctx
}
