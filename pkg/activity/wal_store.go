package activity

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir     = "./wal/activity"
	walSegmentLimit   = 1000
	walMaxSegments    = 100
	walTombstoneValue = "null"
)

// WALStore persists ledger blobs in an append-only WAL.
// The latest record per key wins; removals are written as tombstones.
type WALStore struct {
	dir    string
	closed bool
	wal    *gowal.Wal
	mu     sync.RWMutex
	latest map[string][]byte
}

// NewWALStore opens the WAL under dir and replays it into memory
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultWALDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "activity_",
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init activity WAL")
	}

	s := &WALStore{dir: dir, wal: wal, latest: make(map[string][]byte)}
	for msg := range wal.Iterator() {
		if string(msg.Value) == walTombstoneValue {
			delete(s.latest, msg.Key)
			continue
		}
		s.latest[msg.Key] = msg.Value
	}

	return s, nil
}

// Ensure WALStore implements the Store interface
var _ Store = (*WALStore)(nil)

func (s *WALStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.latest[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *WALStore) Set(_ context.Context, key string, value []byte) error {
	if string(value) == walTombstoneValue {
		return s.Remove(context.Background(), key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, value); err != nil {
		return errors.Wrapf(err, "write %s to WAL", key)
	}
	s.latest[key] = append([]byte(nil), value...)
	return nil
}

func (s *WALStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.latest[key]; !ok {
		return nil
	}
	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, []byte(walTombstoneValue)); err != nil {
		return errors.Wrapf(err, "write tombstone for %s", key)
	}
	delete(s.latest, key)
	return nil
}

// Close closes the underlying WAL
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.wal.Close()
}

// Destroy closes the WAL and deletes its segments, ending the session
func (s *WALStore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		if err := s.wal.Close(); err != nil {
			return errors.Wrap(err, "close activity WAL")
		}
	}
	s.latest = make(map[string][]byte)
	return errors.Wrap(os.RemoveAll(s.dir), "remove activity WAL")
}
