// Package store keeps restart snapshots of runs in a badger database,
// keyed by run and step, so a run can resume from its latest checkpoint.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/san-kum/mdcore/internal/restart"
)

// ErrNotFound reports a run without checkpoints.
var ErrNotFound = errors.New("store: no checkpoint")

// Config selects where the database lives.
type Config struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
	// Keep is the number of checkpoints retained per run; zero keeps all.
	Keep int
}

// Store is a checkpoint database.
type Store struct {
	db   *badger.DB
	keep int
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db, keep: cfg.Keep}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func prefix(runID string) []byte {
	return []byte("ckpt/" + runID + "/")
}

// key orders steps numerically under the run prefix.
func key(runID string, step int64) []byte {
	k := prefix(runID)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(step))
	return append(k, b[:]...)
}

func stepOf(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k[len(k)-8:]))
}

// Put stores snap under its run and step and drops checkpoints beyond Keep.
func (s *Store) Put(ctx context.Context, snap *restart.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(snap.RunID, snap.Step), data)
	})
	if err != nil {
		return fmt.Errorf("store: put step %d: %w", snap.Step, err)
	}
	if s.keep > 0 {
		return s.prune(snap.RunID, s.keep)
	}
	return nil
}

// Steps lists the checkpointed steps of a run in increasing order.
func (s *Store) Steps(runID string) ([]int64, error) {
	var out []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix(runID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, stepOf(it.Item().Key()))
		}
		return nil
	})
	return out, err
}

// Get loads the checkpoint of a run at step.
func (s *Store) Get(runID string, step int64) (*restart.Snapshot, error) {
	var snap *restart.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(runID, step))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w for run %s at step %d", ErrNotFound, runID, step)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snap, err = restart.Unmarshal(val)
			return err
		})
	})
	return snap, err
}

// Latest loads the most recent checkpoint of a run.
func (s *Store) Latest(runID string) (*restart.Snapshot, error) {
	steps, err := s.Steps(runID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w for run %s", ErrNotFound, runID)
	}
	return s.Get(runID, steps[len(steps)-1])
}

func (s *Store) prune(runID string, keep int) error {
	steps, err := s.Steps(runID)
	if err != nil || len(steps) <= keep {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, st := range steps[:len(steps)-keep] {
			if err := txn.Delete(key(runID, st)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Checkpoint stores a periodic snapshot of a running simulation.
func (s *Store) Checkpoint(ctx context.Context, snap *restart.Snapshot) error {
	return s.Put(ctx, snap)
}
