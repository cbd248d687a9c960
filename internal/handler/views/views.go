// Package views renders the portal pages. Components are written in templ;
// this file holds the view models and the helpers the templates call.
package views

import (
	"context"
	"time"

	"github.com/sdceria/portal/internal/admin"
	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/gate"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/wizard"
)

// NoticeKind picks the notification colour.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a message box shown above the page content.
type Notice struct {
	Kind  NoticeKind
	Title string
	Lines []string
	// Highlight is shown in a separate box, e.g. the exam window.
	Highlight string
}

// StudentView is everything the wizard page shows.
type StudentView struct {
	Info      model.AppInfo
	State     wizard.State
	Draft     wizard.Draft
	Grades    []model.GradeLevel
	Sections  []model.Section
	Subjects  []model.Subject
	Section   model.Section
	Subject   model.Subject
	ExamTypes []string
	// Status holds the gate result per subject id, shown on step 3.
	Status map[string]gate.Result
	Notice *Notice
}

// statusOf reports the gate result for a subject card. Subjects without a
// result are open.
func (v StudentView) statusOf(subjectID string) gate.Result {
	if res, ok := v.Status[subjectID]; ok {
		return res
	}
	return gate.Result{Status: gate.Open}
}

// DashboardView is everything the dashboard shows.
type DashboardView struct {
	Info   model.AppInfo
	Tab    admin.Tab
	Notice *Notice

	Records      []model.AttendanceRecord
	Total        int
	Filter       model.AttendanceFilter
	Rombels      []string
	SubjectNames []string

	Schedules []model.ExamSchedule
	Editing   *model.ExamSchedule
	Location  *time.Location

	Links []links.Entry
}

func (v DashboardView) editing() model.ExamSchedule {
	if v.Editing == nil {
		return model.ExamSchedule{}
	}
	return *v.Editing
}

func (v DashboardView) isEditing(s model.ExamSchedule) bool {
	return v.Editing != nil && v.Editing.ID == s.ID
}

// editGrade is the grade option preselected in the schedule form.
func (v DashboardView) editGrade() string {
	if v.Editing == nil {
		return "ALL"
	}
	return v.Editing.Grade.String()
}

func (v DashboardView) scheduleFormTitle() string {
	if v.Editing != nil {
		return "ScheduleFormEdit"
	}
	return "ScheduleFormAdd"
}

// scheduleDate spells out the exam date in the schedule zone, falling back to
// the stored value when it does not parse.
func (v DashboardView) scheduleDate(s model.ExamSchedule) string {
	loc := v.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := s.Start(loc)
	if err != nil {
		return s.Date
	}
	return gate.LongDate(start)
}

// formValue is a hidden input carried by a one-button form.
type formValue struct {
	Name, Value string
}

type navLink struct {
	Path, Label string
}

var navLinks = []navLink{
	{"/instructions", "NavInstructions"},
	{"/about", "NavAbout"},
	{"/admin", "NavAdmin"},
}

var dashboardTabs = []struct {
	Tab   admin.Tab
	Label string
}{
	{admin.TabAttendance, "TabAttendance"},
	{admin.TabSchedule, "TabSchedule"},
	{admin.TabLinks, "TabLinks"},
}

var attendanceColumns = []string{"ColTime", "ColName", "ColNISN", "ColGrade", "ColRombel", "ColSubject", "ColExamType"}

var instructions = []string{"Instruction1", "Instruction2", "Instruction3", "Instruction4"}

// href joins the base path from ctx with a route path.
func href(ctx context.Context, path string) string {
	return model.BasePathFromContext(ctx) + path
}

func t(ctx context.Context, id string) string {
	return appI18n.T(ctx, id)
}

func stepOf(ctx context.Context, step wizard.Step) string {
	return appI18n.Td(ctx, "StepOf", map[string]any{"Step": int(step)})
}

func gradeName(ctx context.Context, g model.GradeLevel) string {
	return appI18n.Td(ctx, "GradeN", map[string]any{"Grade": string(g)})
}

func gradeLabel(ctx context.Context, f model.GradeFilter) string {
	if g, ok := f.Grade(); ok {
		return gradeName(ctx, g)
	}
	return t(ctx, "AllGrades")
}

func subjectName(id string) string {
	if s, ok := catalog.Subject(id); ok {
		return s.Name
	}
	return id
}
