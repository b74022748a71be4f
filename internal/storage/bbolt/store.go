package bbolt

import (
	"context"
	"errors"
	mrand "math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
)

var (
	bucketActivities       = []byte("activities")
	bucketSchemaMigrations = []byte("schema_migrations")
)

var errStoreClosed = errors.New("activity store closed")

type writeTask struct {
	ctx  context.Context
	fn   func(tx *bbolt.Tx) error
	done chan error
}

// Store is the bbolt-backed activity log. Writes are serialized through a
// single writer goroutine.
type Store struct {
	db      *bbolt.DB
	writes  chan writeTask
	stop    chan struct{}
	wg      sync.WaitGroup
	entropy *ulid.MonotonicEntropy
	mu      sync.Mutex
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:      db,
		writes:  make(chan writeTask, 128),
		stop:    make(chan struct{}),
		entropy: ulid.Monotonic(mrand.New(mrand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.wg.Add(1)
	go store.writer()
	return store, nil
}

func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) initSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketActivities, bucketSchemaMigrations} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketSchemaMigrations).Put([]byte("schema_version"), []byte("1"))
	})
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case task := <-s.writes:
			// Skip tasks whose caller gave up while queued.
			if err := task.ctx.Err(); err != nil {
				task.done <- err
				continue
			}
			task.done <- s.db.Update(func(tx *bbolt.Tx) error {
				return task.fn(tx)
			})
		}
	}
}

func (s *Store) runWrite(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	t := writeTask{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.writes <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once queued, wait for the writer so the result matches the commit.
	select {
	case err := <-t.done:
		return err
	case <-s.stop:
		s.wg.Wait()
		select {
		case err := <-t.done:
			return err
		default:
			return errStoreClosed
		}
	}
}

// nextULID orders ids by at rather than by insertion time so cursor scans
// follow activity timestamps.
func (s *Store) nextULID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}
