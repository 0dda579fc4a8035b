package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/TimeKeeper/internal/client/connectivity"
	"github.com/atinyakov/TimeKeeper/internal/client/timer"
	"github.com/atinyakov/TimeKeeper/internal/client/tracker"
	"github.com/atinyakov/TimeKeeper/internal/models"
)

const helpText = `Available commands:
  start [-p <project-id>] <description>   start the timer
  stop                                    stop the timer and record it
  status                                  running timer and sync state
  watch [seconds]                         show the running timer ticking
  today | list [all]                      list entries (fetching from the remote)
  summary [YYYY-MM-DD]                    entries grouped by project
  edit <id> desc <text>                   change a description
  edit <id> project <project-id|->        move to a project, "-" detaches
  edit <id> duration <HH:MM[:SS]>         change a duration
  delete <id>                             delete an entry
  projects                                list projects
  addproject <color> <name>               create a project
  renameproject <id> <name>               rename a project
  delproject <id>                         delete a project
  sync                                    push pending changes
  online | offline                        switch connectivity
  login [user-id]                         cache the owner identity
  whoami                                  show the owner identity
  exit`

// shell executes one command line at a time against the tracker.
type shell struct {
	store  *tracker.Store
	timer  *timer.Controller
	manual *connectivity.Manual
	loc    *time.Location
	out    io.Writer
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// exec runs args and reports whether the shell should keep going.
func (sh *shell) exec(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "help":
		sh.printf("%s\n", helpText)
	case "start":
		sh.start(args[1:])
	case "stop":
		sh.stop(ctx)
	case "status":
		sh.status()
	case "watch":
		sh.watch(ctx, args[1:])
	case "today":
		sh.store.FetchTodayEntries(ctx)
		sh.listEntries()
	case "list":
		if len(args) > 1 && args[1] == "all" {
			sh.store.FetchAllEntries(ctx)
		}
		sh.listEntries()
	case "summary":
		sh.summary(args[1:])
	case "edit":
		sh.edit(ctx, args[1:])
	case "delete":
		if len(args) < 2 {
			sh.printf("Usage: delete <id>\n")
			break
		}
		if _, ok := sh.store.Entry(args[1]); !ok {
			sh.printf("Entry not found\n")
			break
		}
		sh.report(sh.store.DeleteEntry(ctx, args[1]), "Entry deleted")
	case "projects":
		sh.listProjects()
	case "addproject":
		if len(args) < 3 {
			sh.printf("Usage: addproject <color> <name>\n")
			break
		}
		p, err := sh.store.AddProject(ctx, strings.Join(args[2:], " "), args[1])
		sh.report(err, "Project "+p.ID+" created")
	case "renameproject":
		if len(args) < 3 {
			sh.printf("Usage: renameproject <id> <name>\n")
			break
		}
		name := strings.Join(args[2:], " ")
		p, err := sh.store.UpdateProject(ctx, args[1], models.ProjectUpdate{Name: &name})
		if err == nil && p == nil {
			sh.printf("Project not found\n")
			break
		}
		sh.report(err, "Project renamed")
	case "delproject":
		if len(args) < 2 {
			sh.printf("Usage: delproject <id>\n")
			break
		}
		if _, ok := sh.store.Project(args[1]); !ok {
			sh.printf("Project not found\n")
			break
		}
		sh.report(sh.store.DeleteProject(ctx, args[1]), "Project deleted")
	case "sync":
		entries, projects := sh.store.SyncAll(ctx)
		sh.printf("entries: pushed %d, failed %d, deleted %d\n", entries.Pushed, entries.Failed, entries.Deleted)
		sh.printf("projects: pushed %d, failed %d, deleted %d\n", projects.Pushed, projects.Failed, projects.Deleted)
	case "online":
		sh.manual.Set(true)
		sh.printf("Online\n")
	case "offline":
		sh.manual.Set(false)
		sh.printf("Offline\n")
	case "login":
		sh.login(ctx, args[1:])
	case "whoami":
		sh.printf("%s\n", cmp.Or(sh.store.UserID(), "(not signed in)"))
	case "exit":
		sh.printf("Bye\n")
		return false
	default:
		sh.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return true
}

func (sh *shell) report(err error, ok string) {
	if err != nil {
		sh.printf("Error: %v\n", err)
		return
	}
	sh.printf("%s\n", ok)
}

func (sh *shell) start(args []string) {
	var projectID *string
	if len(args) >= 2 && args[0] == "-p" {
		projectID = models.StringPtr(args[1])
		args = args[2:]
	}
	if len(args) == 0 {
		sh.printf("Usage: start [-p <project-id>] <description>\n")
		return
	}
	if sh.store.ActiveTimer() != nil {
		sh.printf("A timer is already running\n")
		return
	}
	sh.report(sh.store.StartTimer(strings.Join(args, " "), projectID), "Timer started")
}

func (sh *shell) stop(ctx context.Context) {
	entry, err := sh.store.StopTimer(ctx)
	switch {
	case err != nil:
		sh.printf("Error: %v\n", err)
	case entry == nil:
		sh.printf("No timer running\n")
	default:
		sh.printf("Recorded %s  %s\n", models.FormatDuration(entry.Seconds()), entry.Description)
	}
}

func (sh *shell) status() {
	tick := sh.timer.Current()
	if tick.Active == nil {
		sh.printf("No timer running\n")
	} else {
		sh.printf("Running %s  %s\n", tick.Format(), tick.Active.Description)
	}
	entries, projects := sh.store.PendingCounts()
	state := "offline"
	if sh.store.IsOnline() {
		state = "online"
	}
	sh.printf("%s, pending: %d entries, %d projects, %d deletions\n",
		state, entries, projects, sh.store.PendingDeletions())
}

func (sh *shell) watch(ctx context.Context, args []string) {
	seconds := 5
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &seconds); err != nil || seconds <= 0 {
			sh.printf("Usage: watch [seconds]\n")
			return
		}
	}
	if sh.store.ActiveTimer() == nil {
		sh.printf("No timer running\n")
		return
	}
	wctx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
	defer cancel()
	sh.timer.Run(wctx, time.Second, func(t timer.Tick) {
		sh.printf("\r%s", t.Format())
	})
	sh.printf("\n")
}

func (sh *shell) listEntries() {
	entries := sh.store.Entries()
	if len(entries) == 0 {
		sh.printf("No entries\n")
		return
	}
	pending := sh.store.PendingEntryIDs()
	for _, e := range entries {
		mark := " "
		if slices.Contains(pending, e.ID) {
			mark = "*"
		}
		sh.printf("%s %s  %s  %s  %s%s\n", mark, e.ID,
			e.StartTime.In(sh.loc).Format("2006-01-02 15:04"),
			models.FormatDuration(e.Seconds()), e.Description, sh.projectSuffix(e.ProjectID))
	}
}

func (sh *shell) projectSuffix(id *string) string {
	if id == nil {
		return ""
	}
	if p, ok := sh.store.Project(*id); ok {
		return "  [" + p.Name + "]"
	}
	return ""
}

func (sh *shell) summary(args []string) {
	var sum tracker.DaySummary
	if len(args) == 0 {
		sum = sh.store.TodaySummary()
	} else {
		day, err := time.ParseInLocation(time.DateOnly, args[0], sh.loc)
		if err != nil {
			sh.printf("Usage: summary [YYYY-MM-DD]\n")
			return
		}
		sum = sh.store.DailySummary(day)
	}
	sh.printf("%s  total %s, remaining %s\n", sum.Day.Format(time.DateOnly),
		models.FormatDurationHuman(sum.Total), models.FormatDurationHuman(sum.Remaining))
	for _, g := range sum.Groups {
		sh.printf("  %s  %s\n", g.Name(), models.FormatDurationHuman(g.Total))
		for _, e := range g.Entries {
			sh.printf("    %s  %s\n", models.FormatDuration(e.Seconds()), e.Description)
		}
	}
}

func (sh *shell) edit(ctx context.Context, args []string) {
	if len(args) < 3 {
		sh.printf("Usage: edit <id> desc|project|duration <value>\n")
		return
	}
	id, field, value := args[0], args[1], strings.Join(args[2:], " ")

	var upd models.EntryUpdate
	switch field {
	case "desc":
		upd.Description = &value
	case "project":
		if value == "-" {
			value = ""
		}
		upd.ProjectID = &value
	case "duration":
		secs, err := models.ParseDuration(value)
		if err != nil {
			sh.printf("Error: %v\n", err)
			return
		}
		upd.Duration = &secs
	default:
		sh.printf("Usage: edit <id> desc|project|duration <value>\n")
		return
	}

	entry, err := sh.store.UpdateEntry(ctx, id, upd)
	if err == nil && entry == nil {
		sh.printf("Entry not found\n")
		return
	}
	sh.report(err, "Entry updated")
}

func (sh *shell) listProjects() {
	projects := sh.store.Projects()
	if len(projects) == 0 {
		sh.printf("No projects\n")
		return
	}
	for _, p := range projects {
		sh.printf("  %s  %s  %s\n", p.ID, p.Color, p.Name)
	}
}

func (sh *shell) login(ctx context.Context, args []string) {
	if len(args) > 0 {
		sh.report(sh.store.SetUserID(args[0]), "Signed in as "+args[0])
		return
	}
	if id := sh.store.BootstrapIdentity(ctx); id != "" {
		sh.printf("Signed in as %s\n", id)
		return
	}
	sh.printf("No signed-in user on the remote store\n")
}
