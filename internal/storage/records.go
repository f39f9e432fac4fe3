package storage

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// prepareRecord validates rec and returns a copy with an ID assigned.
// The caller's attribute map is not retained.
func prepareRecord(rec *models.Record) (*models.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("record cannot be nil")
	}
	if !ValidIdentifier(rec.Model) {
		return nil, fmt.Errorf("%w: model %q is not a valid identifier", ErrInvalidQuery, rec.Model)
	}

	stored := &models.Record{
		ID:         rec.ID,
		Model:      rec.Model,
		Attributes: make(map[string]any, len(rec.Attributes)),
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	for k, v := range rec.Attributes {
		stored.Attributes[k] = v
	}

	return stored, nil
}
