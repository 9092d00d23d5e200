package badger

import (
	"context"

	"github.com/poiesic/docroute/core"
	"github.com/poiesic/docroute/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
// It doubles as the local storage sink.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (r *RecordRepository) Close() error {
	return nil
}

// UpsertRecord inserts or replaces a record keyed by its ID.
func (r *RecordRepository) UpsertRecord(ctx context.Context, record *core.ExtractionRecord) error {
	if record.ID == "" {
		return storage.ErrEmptyKey
	}
	value, err := storage.MarshalRecord(record)
	if err != nil {
		return err
	}
	return r.backend.put(makeRecordKey(record.ID), value)
}

// GetRecord retrieves a record by ID.
func (r *RecordRepository) GetRecord(ctx context.Context, id string) (*core.ExtractionRecord, error) {
	var record *core.ExtractionRecord
	err := r.backend.get(makeRecordKey(id), func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns all records ordered by ID.
func (r *RecordRepository) ListRecords(ctx context.Context) ([]*core.ExtractionRecord, error) {
	var records []*core.ExtractionRecord
	err := r.backend.scan(recordPrefix, func(val []byte) error {
		record, err := storage.UnmarshalRecord(val)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
