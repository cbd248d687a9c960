package views

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/sdceria/portal/internal/admin"
	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/gate"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/wizard"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("id"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	ctx := model.ContextWithBasePath(context.Background(), "/sas")
	ctx = model.ContextWithCSRFToken(ctx, "tok")
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestStudentPageSteps(t *testing.T) {
	base := StudentView{
		Info:      catalog.Info(),
		Grades:    catalog.Grades(),
		Subjects:  catalog.Subjects(),
		ExamTypes: catalog.ExamTypes,
	}

	tests := []struct {
		name  string
		setup func(v *StudentView)
		want  []string
	}{
		{
			name:  "grade",
			setup: func(v *StudentView) { v.State = wizard.State{Step: wizard.StepGrade} },
			want:  []string{`data-step="1"`, "Kelas 4", `action="/sas/grade"`, `name="csrf_token" value="tok"`},
		},
		{
			name: "section",
			setup: func(v *StudentView) {
				v.State = wizard.State{Step: wizard.StepSection, Grade: model.Grade4}
				v.Sections = catalog.Sections(model.Grade4)
			},
			want: []string{"Rombel 4C", `action="/sas/back"`},
		},
		{
			name: "subject with closed window",
			setup: func(v *StudentView) {
				v.State = wizard.State{Step: wizard.StepSubject, Grade: model.Grade5, SectionID: "A"}
				v.Status = map[string]gate.Result{
					"math": {Status: gate.Closed, Description: "Senin, 10 Juni 2024, Pukul 08:00 WIB"},
					"ipa":  {Status: gate.Ended},
				}
			},
			want: []string{`data-status="closed"`, "Pukul 08:00 WIB", `data-status="ended"`, "Selesai"},
		},
		{
			name: "attendance form escapes draft",
			setup: func(v *StudentView) {
				v.State = wizard.State{Step: wizard.StepAttendance, Grade: model.Grade6, SectionID: "B", SubjectID: "ipa"}
				v.Draft = wizard.Draft{Name: `"><script>`, ExamType: "Ujian Susulan"}
				v.Section, _ = catalog.Section(model.Grade6, "B")
				v.Subject, _ = catalog.Subject("ipa")
			},
			want: []string{`value="&#34;&gt;&lt;script&gt;"`, `<option value="Ujian Susulan" selected>`, "Rombel 6B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			tt.setup(&v)
			got := renderString(t, StudentPage(v))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q", w)
				}
			}
		})
	}
}

func TestNotice(t *testing.T) {
	v := StudentView{
		Info:   catalog.Info(),
		State:  wizard.State{Step: wizard.StepGrade},
		Notice: &Notice{Kind: NoticeError, Title: "Perhatian", Lines: []string{"a < b"}, Highlight: "jam 8"},
	}
	got := renderString(t, StudentPage(v))
	for _, w := range []string{`notice-error`, "a &lt; b", `notice-highlight">jam 8`} {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q", w)
		}
	}
}

func TestLaunchPageSanitizesURL(t *testing.T) {
	rec := model.AttendanceRecord{Name: "Budi", Subject: "IPA"}

	got := renderString(t, LaunchPage(catalog.Info(), rec, "https://forms.example/x?a=1&b=2"))
	if !strings.Contains(got, `data-url="https://forms.example/x?a=1&amp;b=2"`) {
		t.Errorf("launch link missing: %s", got)
	}

	got = renderString(t, LaunchPage(catalog.Info(), rec, "javascript:alert(1)"))
	if strings.Contains(got, "javascript:alert") {
		t.Error("unsafe URL rendered")
	}
}

func TestDashboardConfirmForms(t *testing.T) {
	v := DashboardView{
		Info:  catalog.Info(),
		Tab:   admin.TabLinks,
		Links: []links.Entry{{Key: links.DefaultKey, URL: "https://d"}, {Key: "4-A-math", URL: "https://m"}},
	}
	got := renderString(t, DashboardPage(v))
	if !strings.Contains(got, `data-confirm="Hapus link khusus untuk 4-A-math? Link akan kembali ke Default."`) {
		t.Error("delete link form lacks confirmation")
	}
	if strings.Count(got, `action="/sas/admin/links/delete"`) != 1 {
		t.Error("the default link must not have a delete form")
	}
	if !strings.Contains(got, `name="confirmed" value=""`) {
		t.Error("confirmed field missing")
	}
}

func TestDashboardSchedules(t *testing.T) {
	s := model.ExamSchedule{ID: "s1", Grade: model.AllGrades(), SubjectID: "math", Date: "2024-06-10", StartTime: "08:00", EndTime: "09:00"}
	v := DashboardView{
		Info:      catalog.Info(),
		Tab:       admin.TabSchedule,
		Schedules: []model.ExamSchedule{s},
		Editing:   &s,
		Location:  time.UTC,
	}
	got := renderString(t, DashboardPage(v))
	for _, w := range []string{"Edit Jadwal", "schedule-editing", "Semua Kelas", "Matematika", "Senin, 10 Juni 2024", "08:00 - 09:00", `action="/sas/admin/schedules/s1/delete"`} {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q", w)
		}
	}
}

func TestPagesRenderInsideLayout(t *testing.T) {
	got := renderString(t, AboutPage(catalog.Info()))
	for _, w := range []string{
		"<!doctype html>",
		`<a href="/sas/about">`,
		`<main class="max-w-4xl mx-auto p-4"><div class="bg-white rounded-3xl shadow p-6">`,
		"Tentang SAS",
		`getAttribute("data-confirm")`,
	} {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q", w)
		}
	}
	if strings.Count(got, "<html") != 1 {
		t.Error("page must be wrapped exactly once")
	}
}
