// Package fills persists the fill journal in a write-ahead log so a restarted
// session can replay what its grid already executed.
package fills

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

const (
	DefaultDir   = "./wal/fills"
	segmentLimit = 1000
	maxSegments  = 10

	fillKeyPrefix = "fill_"
)

// FillRecordEntry pairs a persisted fill with its WAL index so consumers can
// resume from where they stopped.
type FillRecordEntry struct {
	Index uint64
	Fill  domain.FillRecord
}

// WALStore persists fill records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed fill journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "fill_journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init fill WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveFill appends one fill record to the journal.
func (s *WALStore) SaveFill(fill domain.FillRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("fill store is not initialized")
	}
	if fill.ID == "" {
		return fmt.Errorf("fill record id is required")
	}

	payload, err := json.Marshal(fill)
	if err != nil {
		return errors.Wrap(err, "marshal fill record")
	}

	key := fmt.Sprintf("%s%s", fillKeyPrefix, fill.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// FillsAfter returns all fill records written after the provided WAL index.
func (s *WALStore) FillsAfter(index uint64) ([]FillRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("fill store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]FillRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, fillKeyPrefix) {
			continue
		}

		var fill domain.FillRecord
		if err := json.Unmarshal(payload, &fill); err != nil {
			return nil, errors.Wrap(err, "decode fill record")
		}
		records = append(records, FillRecordEntry{Index: idx, Fill: fill})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("fill store is not initialized")
	}

	return s.wal.Close()
}
