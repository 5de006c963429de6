package db

import (
	"context"
	"errors"

	"github.com/ststudios/whitelist/types"
)

// Sentinel errors surfaced by every Store backend. Callers distinguish a
// missing record and a uniqueness violation from genuine backend failures.
var (
	ErrNotFound           = errors.New("application not found")
	ErrDuplicateApplicant = errors.New("applicant already has an application")
)

// Store is the persistence contract for whitelist applications. All
// operations are single-record; backends must enforce applicant uniqueness
// atomically on Insert and serialize conflicting writes per record.
type Store interface {
	// FindByApplicantID returns the application owned by the given Discord
	// user, or ErrNotFound.
	FindByApplicantID(ctx context.Context, applicantID string) (*types.Application, error)

	// FindByID returns the application with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*types.Application, error)

	// Insert stores a new application, assigning its ID and timestamps.
	// Returns ErrDuplicateApplicant if the applicant already has a record.
	Insert(ctx context.Context, app *types.Application) (*types.Application, error)

	// Update replaces the stored record identified by app.ID and refreshes
	// UpdatedAt. Returns ErrNotFound if no such record exists.
	Update(ctx context.Context, app *types.Application) (*types.Application, error)

	// ListByStatus returns up to limit applications with the given status,
	// most recent first. An empty status means all statuses.
	ListByStatus(ctx context.Context, status types.Status, limit int64) ([]types.Application, error)

	// CountByStatus returns the number of applications per status.
	CountByStatus(ctx context.Context) (map[types.Status]int64, error)

	// Search returns up to limit applications matching the query against the
	// application id, the applicant id, or a substring of the applicant name
	// or game handle.
	Search(ctx context.Context, query string, limit int64) ([]types.Application, error)
}
