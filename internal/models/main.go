// Package models defines the core data structures for projects, time entries
// and the running timer.
package models

import "time"

const (
	// MaxDailySeconds is the ceiling on tracked duration per calendar day.
	MaxDailySeconds int64 = 86400
	// MaxDescriptionLength is the longest allowed time entry description, in characters.
	MaxDescriptionLength = 200
	// MaxProjectNameLength is the longest allowed project name, in characters.
	MaxProjectNameLength = 50
)

// Collection names used by the remote store.
const (
	CollectionProjects    = "projects"
	CollectionTimeEntries = "time_entries"
)

// Project groups time entries under a name and a color.
type Project struct {
	// ID is generated locally at creation time so it is valid offline.
	ID string `json:"id"`
	// Name is the display name, at most MaxProjectNameLength characters.
	Name string `json:"name"`
	// Color is a color token such as "#3b82f6".
	Color string `json:"color"`
	// UserID identifies the owner.
	UserID string `json:"user_id"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// TimeEntry is a stopped, recorded unit of work.
type TimeEntry struct {
	// ID is generated locally when the timer is stopped.
	ID string `json:"id"`
	// ProjectID references a project. It may dangle after the project is deleted.
	ProjectID *string `json:"project_id"`
	// Description is at most MaxDescriptionLength characters.
	Description string `json:"description"`
	// StartTime decides which day's budget the entry counts against.
	StartTime time.Time `json:"start_time"`
	// EndTime is nil only for records the remote store returns unfinished.
	EndTime *time.Time `json:"end_time"`
	// Duration in seconds.
	Duration *int64 `json:"duration"`
	// UserID identifies the owner.
	UserID string `json:"user_id"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Seconds returns the entry duration, treating a missing duration as zero.
func (e TimeEntry) Seconds() int64 {
	if e.Duration == nil {
		return 0
	}
	return *e.Duration
}

// ActiveTimer is the single running measurement. It has no identity until stopped.
type ActiveTimer struct {
	Description string    `json:"description"`
	ProjectID   *string   `json:"project_id"`
	StartTime   time.Time `json:"start_time"`
}

// EntryUpdate is a partial update of a time entry. Nil fields are left unchanged.
type EntryUpdate struct {
	Description *string `json:"description,omitempty"`
	// ProjectID pointing at an empty string detaches the entry from its project.
	ProjectID *string    `json:"project_id,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  *int64     `json:"duration,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u EntryUpdate) IsEmpty() bool {
	return u.Description == nil && u.ProjectID == nil && u.EndTime == nil && u.Duration == nil
}

// Apply returns a copy of e with the update applied.
func (u EntryUpdate) Apply(e TimeEntry) TimeEntry {
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.ProjectID != nil {
		if *u.ProjectID == "" {
			e.ProjectID = nil
		} else {
			e.ProjectID = StringPtr(*u.ProjectID)
		}
	}
	if u.EndTime != nil {
		end := *u.EndTime
		e.EndTime = &end
	}
	if u.Duration != nil {
		d := *u.Duration
		e.Duration = &d
	}
	return e
}

// ProjectUpdate is a partial update of a project. Nil fields are left unchanged.
type ProjectUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProjectUpdate) IsEmpty() bool {
	return u.Name == nil && u.Color == nil
}

// Apply returns a copy of p with the update applied.
func (u ProjectUpdate) Apply(p Project) Project {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	return p
}

// EntryFilter restricts a time entry fetch.
type EntryFilter struct {
	// From is the inclusive lower bound on StartTime. Zero means unbounded.
	From time.Time
	// To is the exclusive upper bound on StartTime. Zero means unbounded.
	To time.Time
	// Ascending orders by StartTime ascending; the default is descending.
	Ascending bool
}

// SameProject reports whether two nullable project references are equal.
func SameProject(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to a copy of v.
func Int64Ptr(v int64) *int64 { return &v }

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time { return &t }
