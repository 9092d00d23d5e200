package badger

import (
	"context"

	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/storage"
)

// ReviewRepository implements storage.ReviewRepository for BadgerDB.
// It doubles as the local review sink.
type ReviewRepository struct {
	backend *Backend
}

var _ storage.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(backend *Backend) *ReviewRepository {
	return &ReviewRepository{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (r *ReviewRepository) Close() error {
	return nil
}

// SubmitReview inserts or replaces a task keyed by its ID.
// The ticket is the storage key, so resubmission yields the same ticket.
func (r *ReviewRepository) SubmitReview(ctx context.Context, task *core.ReviewTask) (string, error) {
	if task.ID == "" {
		return "", storage.ErrEmptyKey
	}
	value, err := storage.MarshalReview(task)
	if err != nil {
		return "", err
	}
	key := makeReviewKey(task.ID)
	if err := r.backend.put(key, value); err != nil {
		return "", err
	}
	return string(key), nil
}

// GetReview retrieves a task by ID.
func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*core.ReviewTask, error) {
	var task *core.ReviewTask
	err := r.backend.get(makeReviewKey(id), func(val []byte) error {
		var err error
		task, err = storage.UnmarshalReview(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListReviews returns all queued tasks ordered by ID.
func (r *ReviewRepository) ListReviews(ctx context.Context) ([]*core.ReviewTask, error) {
	var tasks []*core.ReviewTask
	err := r.backend.scan(reviewPrefix, func(val []byte) error {
		task, err := storage.UnmarshalReview(val)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
