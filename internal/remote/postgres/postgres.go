// Package postgres implements remote.Store directly on a PostgreSQL database
// holding the projects and time_entries tables. Every query is scoped to one
// owner.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/atinyakov/TimeKeeper/internal/models"
	"github.com/atinyakov/TimeKeeper/internal/remote"
)

// ErrDuplicate is returned when an insert collides with an existing id.
var ErrDuplicate = errors.New("postgres: duplicate id")

const uniqueViolation = "23505"

var (
	projectColumns = []string{"id", "name", "color", "user_id", "created_at"}
	entryColumns   = []string{"id", "project_id", "description", "start_time", "end_time", "duration", "user_id", "created_at"}
)

const (
	projectReturning = "RETURNING id, name, color, user_id, created_at"
	entryReturning   = "RETURNING id, project_id, description, start_time, end_time, duration, user_id, created_at"

	projectUpsert = "ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, color = EXCLUDED.color " +
		"WHERE projects.user_id = EXCLUDED.user_id " + projectReturning
	entryUpsert = "ON CONFLICT (id) DO UPDATE SET project_id = EXCLUDED.project_id, " +
		"description = EXCLUDED.description, start_time = EXCLUDED.start_time, " +
		"end_time = EXCLUDED.end_time, duration = EXCLUDED.duration " +
		"WHERE time_entries.user_id = EXCLUDED.user_id " + entryReturning
)

// Store is a remote.Store over *sql.DB.
type Store struct {
	db     *sql.DB
	userID string
	sb     squirrel.StatementBuilderType
}

// New returns a Store acting on behalf of userID.
func New(db *sql.DB, userID string) *Store {
	return &Store{
		db:     db,
		userID: userID,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (models.Project, error) {
	var p models.Project
	err := r.Scan(&p.ID, &p.Name, &p.Color, &p.UserID, &p.CreatedAt)
	return p, err
}

func scanEntry(r rowScanner) (models.TimeEntry, error) {
	var (
		e         models.TimeEntry
		projectID sql.NullString
		endTime   sql.NullTime
		duration  sql.NullInt64
	)
	if err := r.Scan(&e.ID, &projectID, &e.Description, &e.StartTime, &endTime, &duration, &e.UserID, &e.CreatedAt); err != nil {
		return e, err
	}
	if projectID.Valid {
		e.ProjectID = models.StringPtr(projectID.String)
	}
	if endTime.Valid {
		e.EndTime = models.TimePtr(endTime.Time)
	}
	if duration.Valid {
		e.Duration = models.Int64Ptr(duration.Int64)
	}
	return e, nil
}

// wrap maps driver errors onto the remote error vocabulary.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, remote.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func queryRow[T any](ctx context.Context, s *Store, op string, q squirrel.Sqlizer, scan func(rowScanner) (T, error)) (T, error) {
	var zero T
	query, args, err := q.ToSql()
	if err != nil {
		return zero, fmt.Errorf("%s: build query: %w", op, err)
	}
	v, err := scan(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return zero, wrap(op, err)
	}
	return v, nil
}

func (s *Store) exec(ctx context.Context, op string, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return wrap(op, err)
}

func (s *Store) owned(id string) squirrel.Eq {
	return squirrel.Eq{"id": id, "user_id": s.userID}
}

// FetchProjects implements remote.Store.
func (s *Store) FetchProjects(ctx context.Context) ([]models.Project, error) {
	query, args, err := s.sb.Select(projectColumns...).
		From(models.CollectionProjects).
		Where(squirrel.Eq{"user_id": s.userID}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("FetchProjects: build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("FetchProjects", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, p)
	}
	return out, wrap("FetchProjects", rows.Err())
}

// FetchEntries implements remote.Store.
func (s *Store) FetchEntries(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntry, error) {
	q := s.sb.Select(entryColumns...).
		From(models.CollectionTimeEntries).
		Where(squirrel.Eq{"user_id": s.userID})
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"start_time": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.Lt{"start_time": filter.To})
	}
	if filter.Ascending {
		q = q.OrderBy("start_time ASC")
	} else {
		q = q.OrderBy("start_time DESC")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("FetchEntries: build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("FetchEntries", err)
	}
	defer rows.Close()

	var out []models.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, e)
	}
	return out, wrap("FetchEntries", rows.Err())
}

func (s *Store) entryValues(e models.TimeEntry) []any {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{e.ID, e.ProjectID, e.Description, e.StartTime, e.EndTime, e.Duration, s.userID, created}
}

func (s *Store) projectValues(p models.Project) []any {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{p.ID, p.Name, p.Color, s.userID, created}
}

// InsertEntry implements remote.Store.
func (s *Store) InsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	q := s.sb.Insert(models.CollectionTimeEntries).
		Columns(entryColumns...).
		Values(s.entryValues(e)...).
		Suffix(entryReturning)
	return queryRow(ctx, s, "InsertEntry", q, scanEntry)
}

// UpsertEntry implements remote.Store.
func (s *Store) UpsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	q := s.sb.Insert(models.CollectionTimeEntries).
		Columns(entryColumns...).
		Values(s.entryValues(e)...).
		Suffix(entryUpsert)
	return queryRow(ctx, s, "UpsertEntry", q, scanEntry)
}

// UpdateEntry implements remote.Store.
func (s *Store) UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (models.TimeEntry, error) {
	set := make(map[string]any, 4)
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.ProjectID != nil {
		if *upd.ProjectID == "" {
			set["project_id"] = nil
		} else {
			set["project_id"] = *upd.ProjectID
		}
	}
	if upd.EndTime != nil {
		set["end_time"] = *upd.EndTime
	}
	if upd.Duration != nil {
		set["duration"] = *upd.Duration
	}
	if len(set) == 0 {
		q := s.sb.Select(entryColumns...).From(models.CollectionTimeEntries).Where(s.owned(id))
		return queryRow(ctx, s, "UpdateEntry", q, scanEntry)
	}
	q := s.sb.Update(models.CollectionTimeEntries).
		SetMap(set).
		Where(s.owned(id)).
		Suffix(entryReturning)
	return queryRow(ctx, s, "UpdateEntry", q, scanEntry)
}

// DeleteEntry implements remote.Store.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.exec(ctx, "DeleteEntry", s.sb.Delete(models.CollectionTimeEntries).Where(s.owned(id)))
}

// InsertProject implements remote.Store.
func (s *Store) InsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	q := s.sb.Insert(models.CollectionProjects).
		Columns(projectColumns...).
		Values(s.projectValues(p)...).
		Suffix(projectReturning)
	return queryRow(ctx, s, "InsertProject", q, scanProject)
}

// UpsertProject implements remote.Store.
func (s *Store) UpsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	q := s.sb.Insert(models.CollectionProjects).
		Columns(projectColumns...).
		Values(s.projectValues(p)...).
		Suffix(projectUpsert)
	return queryRow(ctx, s, "UpsertProject", q, scanProject)
}

// UpdateProject implements remote.Store.
func (s *Store) UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (models.Project, error) {
	if upd.IsEmpty() {
		q := s.sb.Select(projectColumns...).From(models.CollectionProjects).Where(s.owned(id))
		return queryRow(ctx, s, "UpdateProject", q, scanProject)
	}
	q := s.sb.Update(models.CollectionProjects).Where(s.owned(id)).Suffix(projectReturning)
	if upd.Name != nil {
		q = q.Set("name", *upd.Name)
	}
	if upd.Color != nil {
		q = q.Set("color", *upd.Color)
	}
	return queryRow(ctx, s, "UpdateProject", q, scanProject)
}

// DeleteProject implements remote.Store.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.exec(ctx, "DeleteProject", s.sb.Delete(models.CollectionProjects).Where(s.owned(id)))
}

// AuthenticatedUserID returns the configured owner.
func (s *Store) AuthenticatedUserID(context.Context) (string, error) {
	if s.userID == "" {
		return "", remote.ErrUnauthenticated
	}
	return s.userID, nil
}

// Ping implements remote.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", remote.ErrUnavailable, err)
	}
	return nil
}

var _ remote.Store = (*Store)(nil)
