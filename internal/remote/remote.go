// Package remote defines the contract the tracker requires from the managed
// backend that durably stores projects and time entries.
package remote

import (
	"context"
	"errors"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist remotely.
	ErrNotFound = errors.New("remote: record not found")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("remote: unavailable")
	// ErrUnauthenticated is returned when no authenticated user is known.
	ErrUnauthenticated = errors.New("remote: not authenticated")
)

// Store is the remote collaborator. Every method is a suspension point for
// the caller; any returned error is treated as a single failure outcome.
type Store interface {
	// FetchProjects returns all projects ordered by name.
	FetchProjects(ctx context.Context) ([]models.Project, error)
	// FetchEntries returns time entries matching filter, ordered by start time.
	FetchEntries(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntry, error)

	InsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error)
	UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (models.TimeEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	// UpsertEntry inserts e or replaces the record with the same id.
	UpsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error)

	InsertProject(ctx context.Context, p models.Project) (models.Project, error)
	UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	// UpsertProject inserts p or replaces the record with the same id.
	UpsertProject(ctx context.Context, p models.Project) (models.Project, error)

	// AuthenticatedUserID returns the signed-in user's id, or ErrUnauthenticated.
	AuthenticatedUserID(ctx context.Context) (string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
