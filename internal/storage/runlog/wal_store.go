// Package runlog keeps an append-only log of finished backtest runs.
package runlog

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/internal/services/metrics"
)

const (
	DefaultDir   = "./wal/runs"
	segmentLimit = 100
	maxSegments  = 10

	runKeyPrefix = "run_"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Record is the persisted outcome of one run.
type Record struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Mode      string                  `json:"mode"`
	Symbols   []string                `json:"symbols"`
	CreatedAt time.Time               `json:"created_at"`
	Params    domain.StrategyParams   `json:"params"`
	Summary   metrics.Summary         `json:"summary"`
	PerSymbol []metrics.SymbolSummary `json:"per_symbol"`
	DayErrors int                     `json:"day_errors"`
}

// IndexedRecord is a record with its WAL position.
type IndexedRecord struct {
	Index  uint64
	Record Record
}

// WALStore persists run records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the run log in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "run_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init run WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends rec, assigning an id and timestamp when missing.
func (s *WALStore) Save(rec Record) (Record, error) {
	if s == nil || s.wal == nil {
		return Record{}, errors.New("run store is not initialized")
	}
	if rec.Name == "" {
		return Record{}, errors.New("run name is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal run record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, runKeyPrefix+rec.ID, payload); err != nil {
		return Record{}, errors.Wrap(err, "write run record")
	}

	return rec, nil
}

// Records returns every stored run in write order.
func (s *WALStore) Records() ([]IndexedRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("run store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	records := make([]IndexedRecord, 0, current)
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, runKeyPrefix) {
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrapf(err, "decode run record %d", idx)
		}
		records = append(records, IndexedRecord{Index: idx, Record: rec})
	}

	return records, nil
}

// Find returns the run with the given id.
func (s *WALStore) Find(id string) (Record, error) {
	records, err := s.Records()
	if err != nil {
		return Record{}, err
	}

	for _, r := range records {
		if r.Record.ID == id {
			return r.Record, nil
		}
	}

	return Record{}, errors.Wrap(ErrNotFound, id)
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
		return errors.New("run store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
