// Package memory implements the episodic memory store for memory-enabled
// agents, backed by LevelDB. After each completed analysis the crew records
// what was asked and what was concluded; on later runs the analyst gets the
// most recent episodes injected into its prompt.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB key scheme — the timestamp component makes lexicographic key order
// equal chronological order, so Recent() is a single reverse scan.
//
//	e|<created_at>|<id> → Entry JSON
const prefixEntry = "e|"

// keyTimeLayout is RFC3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which would break lexicographic ordering of the keys.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded analysis episode.
type Entry struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	Agent     string `json:"agent"`
	Query     string `json:"query"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// Store is the LevelDB-backed episodic memory. Write() is async
// (fire-and-forget channel); Recent() is synchronous.
type Store struct {
	db      *leveldb.DB
	writeCh chan Entry // async write queue; buffered so the request path never blocks
}

// Open opens (or creates) a LevelDB database at dbPath and returns a Store.
// dbPath should be a directory path (LevelDB creates it if absent).
// LevelDB is single-writer: a second findocd process pointed at the same
// cache directory will fail here.
func Open(dbPath string) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: open leveldb at %s: %w", dbPath, err)
	}
	return &Store{
		db:      db,
		writeCh: make(chan Entry, 256),
	}, nil
}

// Write enqueues an Entry for async persistence.
//
// Expectations:
//   - Non-blocking: never blocks the caller goroutine
//   - Assigns ID and CreatedAt if missing
//   - Drops the Entry with a log warning when the queue is at capacity
//   - Does not guarantee persistence before returning
func (s *Store) Write(e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(keyTimeLayout)
	}
	select {
	case s.writeCh <- e:
	default:
		slog.Warn("[MEM] write queue full — dropping entry", "id", e.ID, "task_id", e.TaskID)
	}
}

// Recent returns the latest n entries, newest first.
//
// Expectations:
//   - Returns at most n entries
//   - Returns newest entries first
//   - Returns empty slice (not error) on an empty database
//   - Returns error only on LevelDB iteration failure
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixEntry)), nil)
	defer iter.Release()

	var results []Entry
	for ok := iter.Last(); ok && len(results) < n; ok = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		results = append(results, e)
	}
	return results, iter.Error()
}

// Run processes the async write queue until ctx is cancelled, then drains all
// pending writes and closes the DB.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drainWriteQueue()
			if err := s.db.Close(); err != nil {
				slog.Warn("[MEM] DB close error", "error", err)
			}
			return
		case e := <-s.writeCh:
			s.persist(e)
		}
	}
}

func (s *Store) drainWriteQueue() {
	for {
		select {
		case e := <-s.writeCh:
			s.persist(e)
		default:
			return
		}
	}
}

func (s *Store) persist(e Entry) {
	val, err := json.Marshal(e)
	if err != nil {
		slog.Warn("[MEM] marshal entry failed", "id", e.ID, "error", err)
		return
	}
	key := entryKey(e)
	if err := s.db.Put([]byte(key), val, nil); err != nil {
		slog.Warn("[MEM] put failed", "key", key, "error", err)
	}
}

func entryKey(e Entry) string {
	return prefixEntry + e.CreatedAt + "|" + e.ID
}
