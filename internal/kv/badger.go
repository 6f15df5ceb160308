package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM (tests).
	InMemory bool

	// Namespace prefixes every key, like an NVS namespace.
	Namespace string
}

// badgerLogger routes badger's internal logging to zerolog at debug level
// so it does not drown the kiosk's own output.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

// Badger is a Store on top of a badger database. Set stages writes in a
// read-write transaction which Commit makes durable.
type Badger struct {
	db        *badger.DB
	namespace string

	mu  sync.Mutex
	txn *badger.Txn
}

// OpenBadger opens (creating if needed) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: log.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db, namespace: cfg.Namespace}, nil
}

func (b *Badger) key(k string) []byte {
	if b.namespace == "" {
		return []byte(k)
	}
	return []byte(b.namespace + "/" + k)
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return val, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.txn == nil {
		b.txn = b.db.NewTransaction(true)
	}
	if err := b.txn.Set(b.key(key), append([]byte(nil), value...)); err != nil {
		b.txn.Discard()
		b.txn = nil
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (b *Badger) Commit(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.txn == nil {
		return nil
	}
	txn := b.txn
	b.txn = nil
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}

// Close discards any uncommitted writes and closes the database.
func (b *Badger) Close() error {
	b.mu.Lock()
	if b.txn != nil {
		b.txn.Discard()
		b.txn = nil
	}
	b.mu.Unlock()
	return b.db.Close()
}
