// Package rowstore keeps tables of rows in a transactional key-value store
// and hands them back as dyncol containers: a named row is a Map keyed by
// column, a positional row is a List in column order.
//
// Rows are stored as MessagePack arrays under their primary key, so a table
// scan returns rows in key order.
package rowstore

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/andreyvit/dyncol"
	"github.com/andreyvit/dyncol/codec"
	"go.etcd.io/bbolt"
)

// InMemory as the path to Open selects a transient in-memory store.
const InMemory = ":memory:"

type Options struct {
	// IsTesting trades durability for speed.
	IsTesting bool
	MmapSize  int

	// Logger defaults to the Context's logger.
	Logger *slog.Logger

	// Context builds the containers returned by reads. Defaults to
	// dyncol.DefaultContext().
	Context *dyncol.Context
}

type Store struct {
	st     storage
	ctx    *dyncol.Context
	logger *slog.Logger

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

func Open(path string, opt Options) (*Store, error) {
	ctx := opt.Context
	if ctx == nil {
		ctx = dyncol.DefaultContext()
	}
	logger := opt.Logger
	if logger == nil {
		logger = ctx.Logger()
	}
	s := &Store{ctx: ctx, logger: logger}

	if path == InMemory {
		s.st = newMemStorage()
		logger.Debug("rowstore: opened in memory")
		return s, nil
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		logger.Warn("rowstore: open failed", slog.String("path", path), slog.Any("err", err))
		return nil, fmt.Errorf("rowstore: %w", err)
	}
	s.st = &boltStorage{bdb: bdb}
	logger.Debug("rowstore: opened", slog.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) Context() *dyncol.Context {
	return s.ctx
}

// Read runs f in a read-only transaction.
func (s *Store) Read(f func(tx *Tx) error) error {
	stx, err := s.st.BeginTx(false)
	if err != nil {
		return fmt.Errorf("rowstore: begin read: %w", err)
	}
	defer stx.Rollback()
	s.ReadCount.Add(1)
	return safelyCall(f, &Tx{stx: stx, store: s})
}

// Write runs f in a read-write transaction, committing if f returns nil and
// rolling back otherwise.
func (s *Store) Write(f func(tx *Tx) error) error {
	stx, err := s.st.BeginTx(true)
	if err != nil {
		return fmt.Errorf("rowstore: begin write: %w", err)
	}
	defer stx.Rollback()
	s.WriteCount.Add(1)
	if err := safelyCall(f, &Tx{stx: stx, store: s}); err != nil {
		return err
	}
	if err := stx.Commit(); err != nil {
		s.logger.Error("rowstore: commit failed", slog.Any("err", err))
		return fmt.Errorf("rowstore: commit: %w", err)
	}
	return nil
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

type Tx struct {
	stx   storageTx
	store *Store
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Size returns the size of the underlying database in bytes.
func (tx *Tx) Size() int64 {
	return tx.stx.Size()
}

func (tx *Tx) codecOptions() codec.Options {
	return codec.Options{Context: tx.store.ctx, Logger: tx.store.logger}
}
