package tracker

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// AddProject creates a project with a locally generated id and appends it to
// the collection.
func (s *Store) AddProject(ctx context.Context, name, color string) (models.Project, error) {
	upd, err := normalizeProjectUpdate(models.ProjectUpdate{Name: &name, Color: &color})
	if err != nil {
		return models.Project{}, err
	}

	s.mu.Lock()
	if s.st.userID == "" {
		s.mu.Unlock()
		return models.Project{}, ErrNoOwnerIdentity
	}
	p := models.Project{
		ID:        s.newID(),
		Name:      *upd.Name,
		Color:     *upd.Color,
		UserID:    s.st.userID,
		CreatedAt: s.now(),
	}
	next := s.st.clone()
	next.projects = append(next.projects, p)
	rev := s.nextRev()
	next.pending[kindProjects].mark(p.ID, rev)
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return models.Project{}, err
	}
	s.mu.Unlock()

	if s.online.Load() {
		_, err := s.remote.InsertProject(ctx, p)
		s.settle(ctx, kindProjects, p.ID, rev, err)
	}
	return p, nil
}

// UpdateProject renames or recolors a project. It is a no-op (nil, nil) when
// the project does not exist.
func (s *Store) UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (*models.Project, error) {
	upd, err := normalizeProjectUpdate(upd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := indexOfProject(s.st.projects, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}
	if upd.IsEmpty() {
		p := s.st.projects[i]
		s.mu.Unlock()
		return &p, nil
	}
	next := s.st.clone()
	updated := upd.Apply(next.projects[i])
	next.projects[i] = updated
	rev := s.nextRev()
	next.pending[kindProjects].mark(id, rev)
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if s.online.Load() {
		_, err := s.remote.UpdateProject(ctx, id, upd)
		s.settle(ctx, kindProjects, id, rev, err)
	}
	return &updated, nil
}

// DeleteProject removes a project. Entries referencing it keep the dangling
// reference and are shown without a project.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteRecord(ctx, kindProjects, id)
}

// FetchProjects replaces the project collection with the remote one, keeping
// pending local projects. It reports whether remote data was applied.
func (s *Store) FetchProjects(ctx context.Context) bool {
	fetched, err := s.remote.FetchProjects(ctx)
	if err != nil {
		s.log.Warn("failed to fetch projects, keeping local state", zap.Error(err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	next.projects = mergeFetched(s.st.projects, fetched,
		func(p models.Project) string { return p.ID },
		s.st.pending[kindProjects], s.st.deleted[kindProjects])
	if err := s.commit(next); err != nil {
		return false
	}
	return true
}

// Project returns the project with id.
func (s *Store) Project(id string) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfProject(s.st.projects, id); i >= 0 {
		return s.st.projects[i], true
	}
	return models.Project{}, false
}

func normalizeProjectUpdate(upd models.ProjectUpdate) (models.ProjectUpdate, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return upd, invalid("project name must not be empty")
		}
		if utf8.RuneCountInString(name) > models.MaxProjectNameLength {
			return upd, invalid("project name longer than %d characters", models.MaxProjectNameLength)
		}
		upd.Name = &name
	}
	if upd.Color != nil {
		color := strings.TrimSpace(*upd.Color)
		if color == "" {
			return upd, invalid("project color must not be empty")
		}
		upd.Color = &color
	}
	return upd, nil
}
