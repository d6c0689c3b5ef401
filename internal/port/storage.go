package port

import "github.com/bnema/upscaler/internal/domain"

// JobRegistry is the single source of truth for job status. Update applies
// the mutator atomically; when it returns an error the stored record is left
// untouched.
type JobRegistry interface {
	Create(rec domain.Record) error
	Get(id string) (domain.Record, error)
	Update(id string, mutate func(*domain.Record) error) (domain.Record, error)
	List() ([]domain.Record, error)
}
