package tracker

import (
	"time"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// NoProjectName labels entries without a project or with a deleted one.
const NoProjectName = "No Project"

// Group collects a day's entries under one project.
type Group struct {
	// Project is nil for entries without an existing project.
	Project *models.Project    `json:"project"`
	Entries []models.TimeEntry `json:"entries"`
	Total   int64              `json:"total"`
}

// Name returns the project name or NoProjectName.
func (g Group) Name() string {
	if g.Project == nil {
		return NoProjectName
	}
	return g.Project.Name
}

// DaySummary is a calendar day's entries grouped by project.
type DaySummary struct {
	Day    time.Time `json:"day"`
	Groups []Group   `json:"groups"`
	Total  int64     `json:"total"`
	// Remaining is what is left of the daily budget, in seconds.
	Remaining int64 `json:"remaining"`
}

// DailySummary groups the entries starting on day by project, in entry
// order. Groups appear in the order their first entry appears.
func (s *Store) DailySummary(day time.Time) DaySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := models.DayRange(day, s.loc)
	sum := DaySummary{Day: from}
	index := make(map[string]int)

	for _, e := range s.st.entries {
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		var (
			key     string
			project *models.Project
		)
		if e.ProjectID != nil {
			if i := indexOfProject(s.st.projects, *e.ProjectID); i >= 0 {
				p := s.st.projects[i]
				project = &p
				key = p.ID
			}
		}
		gi, ok := index[key]
		if !ok {
			gi = len(sum.Groups)
			index[key] = gi
			sum.Groups = append(sum.Groups, Group{Project: project})
		}
		sum.Groups[gi].Entries = append(sum.Groups[gi].Entries, e)
		sum.Groups[gi].Total += e.Seconds()
		sum.Total += e.Seconds()
	}
	sum.Remaining = max(models.MaxDailySeconds-sum.Total, 0)
	return sum
}

// TodaySummary is DailySummary for the current day.
func (s *Store) TodaySummary() DaySummary {
	return s.DailySummary(s.now())
}
