// Package admin holds the dashboard operations behind the admin login: schedule,
// link and attendance management plus the persisted view preferences.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sdceria/portal/internal/attendance"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/schedule"
	"github.com/sdceria/portal/internal/store"
)

// Storage keys for the dashboard preferences.
const (
	TabKey     = "sas_dashboard_tab"
	FiltersKey = "sas_dashboard_filters"
	EditKey    = "sas_dashboard_editing"
)

// ErrNotConfirmed is returned by irreversible actions that were not confirmed.
var ErrNotConfirmed = errors.New("action requires confirmation")

// Tab is a dashboard page.
type Tab string

const (
	TabAttendance Tab = "attendance"
	TabSchedule   Tab = "schedule"
	TabLinks      Tab = "links"
)

// ParseTab returns the tab named s.
func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabAttendance, TabSchedule, TabLinks:
		return t, true
	}
	return "", false
}

// Deps are the shared registries the dashboard manages.
type Deps struct {
	Schedules  *schedule.Registry
	Links      *links.Table
	Attendance *attendance.Log
}

// Dashboard is the admin view for one browser. Tab and filters live in the
// durable scope, the schedule being edited in the session scope.
type Dashboard struct {
	store *store.Adapter
	deps  Deps
}

// New creates a dashboard over a, which should be a session view of the adapter.
func New(a *store.Adapter, deps Deps) *Dashboard {
	return &Dashboard{store: a, deps: deps}
}

// Tab returns the last selected tab, TabAttendance by default.
func (d *Dashboard) Tab(ctx context.Context) Tab {
	v, ok := d.store.Get(ctx, TabKey, store.Durable)
	if !ok {
		return TabAttendance
	}
	if t, ok := ParseTab(v); ok {
		return t
	}
	return TabAttendance
}

// SetTab selects a tab.
func (d *Dashboard) SetTab(ctx context.Context, name string) (Tab, error) {
	t, ok := ParseTab(name)
	if !ok {
		return "", fmt.Errorf("unknown tab %q", name)
	}
	_ = d.store.Set(ctx, TabKey, string(t), store.Durable)
	return t, nil
}

// Filters returns the saved attendance filter.
func (d *Dashboard) Filters(ctx context.Context) model.AttendanceFilter {
	var f model.AttendanceFilter
	store.LoadJSON(ctx, d.store, FiltersKey, store.Durable, &f)
	return f
}

// SetFilters saves the attendance filter.
func (d *Dashboard) SetFilters(ctx context.Context, f model.AttendanceFilter) {
	_ = store.SaveJSON(ctx, d.store, FiltersKey, store.Durable, f)
}

// ResetFilters clears every filter criterion.
func (d *Dashboard) ResetFilters(ctx context.Context) {
	d.SetFilters(ctx, model.AttendanceFilter{})
}

// Records returns the attendance log narrowed by the saved filter.
func (d *Dashboard) Records(ctx context.Context) []model.AttendanceRecord {
	return attendance.Filter(d.deps.Attendance.List(), d.Filters(ctx))
}

// Total is the unfiltered record count.
func (d *Dashboard) Total() int {
	return d.deps.Attendance.Len()
}

// FilterOptions returns the rombel and subject names present in the log.
func (d *Dashboard) FilterOptions() (rombels, subjects []string) {
	return attendance.Distinct(d.deps.Attendance.List())
}

// ExportCSV writes the filtered records as CSV.
func (d *Dashboard) ExportCSV(ctx context.Context, w io.Writer) error {
	return attendance.WriteCSV(w, d.Records(ctx))
}

// ExportReport writes the filtered records as an XLSX report.
func (d *Dashboard) ExportReport(ctx context.Context, w io.Writer, now time.Time) error {
	return attendance.WriteReport(w, d.Records(ctx), d.Filters(ctx), now)
}

// ClearAttendance deletes every attendance record and returns how many there were.
func (d *Dashboard) ClearAttendance(ctx context.Context, confirmed bool) (int, error) {
	if !confirmed {
		return 0, ErrNotConfirmed
	}
	return d.deps.Attendance.Clear(ctx), nil
}

// Schedules lists the registry.
func (d *Dashboard) Schedules() []model.ExamSchedule {
	return d.deps.Schedules.List()
}

// Editing returns the schedule currently open in the edit form.
func (d *Dashboard) Editing(ctx context.Context) (model.ExamSchedule, bool) {
	id, ok := d.store.Get(ctx, EditKey, store.Session)
	if !ok {
		return model.ExamSchedule{}, false
	}
	s, ok := d.deps.Schedules.Get(id)
	if !ok {
		_ = d.store.Remove(ctx, EditKey, store.Session)
	}
	return s, ok
}

// BeginEdit opens schedule id in the edit form.
func (d *Dashboard) BeginEdit(ctx context.Context, id string) (model.ExamSchedule, error) {
	s, ok := d.deps.Schedules.Get(id)
	if !ok {
		return model.ExamSchedule{}, fmt.Errorf("%w: %q", schedule.ErrNotFound, id)
	}
	_ = d.store.Set(ctx, EditKey, id, store.Session)
	return s, nil
}

// CancelEdit closes the edit form.
func (d *Dashboard) CancelEdit(ctx context.Context) {
	_ = d.store.Remove(ctx, EditKey, store.Session)
}

// SaveSchedule adds a schedule, or replaces the one being edited, then closes the
// edit form. The bool reports whether an existing schedule was edited.
func (d *Dashboard) SaveSchedule(ctx context.Context, draft schedule.Draft) (model.ExamSchedule, bool, error) {
	var editingID string
	if s, ok := d.Editing(ctx); ok {
		editingID = s.ID
	}
	saved, err := d.deps.Schedules.Upsert(ctx, draft, editingID)
	if err != nil {
		return model.ExamSchedule{}, false, err
	}
	d.CancelEdit(ctx)
	return saved, editingID != "", nil
}

// DeleteSchedule removes schedule id. Deleting the schedule being edited closes
// the edit form; an unknown id is a no-op.
func (d *Dashboard) DeleteSchedule(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if s, ok := d.Editing(ctx); ok && s.ID == id {
		d.CancelEdit(ctx)
	}
	d.deps.Schedules.Remove(ctx, id)
	return nil
}

// Links lists the link table.
func (d *Dashboard) Links() []links.Entry {
	return d.deps.Links.Entries()
}

// SaveLink stores url for the combination, or as the default when all three are empty.
func (d *Dashboard) SaveLink(ctx context.Context, grade, sectionID, subjectID, url string) (string, error) {
	return d.deps.Links.Save(ctx, grade, sectionID, subjectID, url)
}

// DeleteLink removes a specific link entry.
func (d *Dashboard) DeleteLink(ctx context.Context, key string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	return d.deps.Links.Delete(ctx, key)
}
