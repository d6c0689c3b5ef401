package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// Store is an in-memory job registry. When created with a data directory it
// also snapshots every change to jobs.json so status survives restarts.
type Store struct {
	mu   sync.RWMutex
	path string
	jobs map[string]*domain.Record
}

// NewMemoryStore returns a registry without persistence.
func NewMemoryStore() *Store {
	return &Store{jobs: make(map[string]*domain.Record)}
}

func NewStore(dataDir string) (*Store, error) {
	store := &Store{
		path: filepath.Join(dataDir, "jobs.json"),
		jobs: make(map[string]*domain.Record),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var records []*domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	stale := false
	for _, rec := range records {
		if !rec.State.IsTerminal() {
			_ = rec.Fail(domain.ErrInterrupted)
			stale = true
		}
		s.jobs[rec.ID] = rec
	}

	if stale {
		return s.save()
	}
	return nil
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	tmpPath := s.path + ".tmp"

	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

func (s *Store) sorted() []domain.Record {
	list := make([]domain.Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		list = append(list, *rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].SubmittedAt.Before(list[j].SubmittedAt)
	})
	return list
}

func (s *Store) Create(rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[rec.ID]; ok {
		return domain.ErrDuplicateJob
	}
	s.jobs[rec.ID] = &rec
	return s.save()
}

func (s *Store) Get(id string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}

	return *rec, nil
}

func (s *Store) Update(id string, mutate func(*domain.Record) error) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}

	next := *rec
	if err := mutate(&next); err != nil {
		return *rec, err
	}
	s.jobs[id] = &next

	if err := s.save(); err != nil {
		return next, fmt.Errorf("persist job %s: %w", id, err)
	}
	return next, nil
}

// List returns every job ordered by submission time.
func (s *Store) List() ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(), nil
}

var _ port.JobRegistry = (*Store)(nil)
