package jobs

import (
	"context"

	"github.com/dmitrijs2005/dulo/internal/client/models"
)

// Repository describes the job history operations.
type Repository interface {
	// Upsert inserts a record or merges it into the existing one by JobID.
	// Empty descriptive fields never overwrite stored values and CreatedAt
	// is kept from the first insert.
	Upsert(ctx context.Context, rec *models.JobRecord) error

	// Get returns a record by job id or common.ErrorNotFound.
	Get(ctx context.Context, jobID string) (*models.JobRecord, error)

	// List returns records matching q ordered by creation time.
	List(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error)

	// Delete removes a record. Missing ids are not an error.
	Delete(ctx context.Context, jobID string) error
}
