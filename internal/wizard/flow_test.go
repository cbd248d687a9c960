package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sdceria/portal/internal/attendance"
	"github.com/sdceria/portal/internal/gate"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/store"
)

var wib = time.FixedZone("WIB", 7*3600)

type fakeSchedules struct {
	items []model.ExamSchedule
}

func (f *fakeSchedules) List() []model.ExamSchedule { return f.items }

type fixture struct {
	adapter   *store.Adapter
	schedules *fakeSchedules
	log       *attendance.Log
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a := store.NewAdapter(store.NewMemory(0), store.NewMemory(0))
	fs := &fakeSchedules{}
	log := attendance.NewLog(ctx, a, wib)
	tbl := links.NewTable(ctx, a, map[string]string{links.DefaultKey: "U0", "4-A-math": "U-math"})
	return &fixture{
		adapter:   a,
		schedules: fs,
		log:       log,
		deps:      Deps{Gate: gate.New(fs, wib), Links: tbl, Attendance: log},
	}
}

func at(h, m int) time.Time {
	return time.Date(2024, 6, 10, h, m, 0, 0, wib)
}

func walkToSubject(t *testing.T, f *Flow, grade, section string) {
	t.Helper()
	ctx := context.Background()
	if err := f.SelectGrade(ctx, grade); err != nil {
		t.Fatalf("SelectGrade: %v", err)
	}
	if err := f.SelectSection(ctx, section); err != nil {
		t.Fatalf("SelectSection: %v", err)
	}
}

func TestHappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := New(fx.deps, nil)

	walkToSubject(t, f, "4", "A")
	if _, err := f.SelectSubject(ctx, "math", at(8, 0)); err != nil {
		t.Fatalf("SelectSubject: %v", err)
	}
	if f.State().Step != StepAttendance {
		t.Fatalf("step = %d", f.State().Step)
	}

	f.UpdateDraft(ctx, Draft{Name: " Budi ", NISN: "123"})
	sub, err := f.Submit(ctx, at(8, 5))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.URL != "U-math" {
		t.Errorf("URL = %q, want U-math", sub.URL)
	}
	if sub.Record.Name != "Budi" || sub.Record.Rombel != "Rombel 4A" || sub.Record.Subject != "Matematika" {
		t.Errorf("record = %+v", sub.Record)
	}
	if sub.Record.ExamType == "" {
		t.Error("exam type should default")
	}
	if fx.log.Len() != 1 {
		t.Errorf("log has %d records", fx.log.Len())
	}
	if f.Draft().Name != "" {
		t.Error("draft should be cleared after submit")
	}
}

func TestSubmitFallsBackToDefaultLink(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := New(fx.deps, nil)
	walkToSubject(t, f, "5", "B")
	_, _ = f.SelectSubject(ctx, "ipa", at(8, 0))
	f.UpdateDraft(ctx, Draft{Name: "Siti", NISN: "9"})
	sub, err := f.Submit(ctx, at(8, 0))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.URL != "U0" {
		t.Errorf("URL = %q, want default", sub.URL)
	}
}

func TestSubjectGate(t *testing.T) {
	fx := newFixture(t)
	fx.schedules.items = []model.ExamSchedule{{
		ID: "1", Grade: model.Specific(model.Grade4), SubjectID: "math",
		Date: "2024-06-10", StartTime: "08:00", EndTime: "09:00",
	}}
	ctx := context.Background()

	tests := []struct {
		name   string
		now    time.Time
		status gate.Status
	}{
		{"before window", at(7, 59), gate.Closed},
		{"after window", at(9, 1), gate.Ended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(fx.deps, nil)
			walkToSubject(t, f, "4", "A")
			res, err := f.SelectSubject(ctx, "math", tt.now)
			var denied *gate.DeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("err = %v, want DeniedError", err)
			}
			if res.Status != tt.status || res.Description == "" {
				t.Errorf("result = %+v", res)
			}
			if f.State().Step != StepSubject || f.State().SubjectID != "" {
				t.Errorf("flow advanced: %+v", f.State())
			}
		})
	}
}

func TestSubmitRechecksGate(t *testing.T) {
	fx := newFixture(t)
	fx.schedules.items = []model.ExamSchedule{{
		ID: "1", Grade: model.AllGrades(), SubjectID: "math",
		Date: "2024-06-10", StartTime: "08:00", EndTime: "09:00",
	}}
	ctx := context.Background()
	f := New(fx.deps, nil)
	walkToSubject(t, f, "4", "A")
	if _, err := f.SelectSubject(ctx, "math", at(8, 55)); err != nil {
		t.Fatalf("SelectSubject: %v", err)
	}
	f.UpdateDraft(ctx, Draft{Name: "Budi", NISN: "1"})

	_, err := f.Submit(ctx, at(9, 5))
	var denied *gate.DeniedError
	if !errors.As(err, &denied) || denied.Result.Status != gate.Ended {
		t.Fatalf("err = %v, want ended", err)
	}
	if fx.log.Len() != 0 {
		t.Error("denied submission must not record attendance")
	}
	if f.Draft().Name != "Budi" {
		t.Error("denied submission must keep the draft")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		want  error
	}{
		{"empty name", Draft{Name: "  ", NISN: "1"}, ErrNameRequired},
		{"empty nisn", Draft{Name: "Budi", NISN: ""}, ErrNISNRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			ctx := context.Background()
			f := New(fx.deps, nil)
			walkToSubject(t, f, "4", "A")
			_, _ = f.SelectSubject(ctx, "math", at(8, 0))
			f.UpdateDraft(ctx, tt.draft)
			if _, err := f.Submit(ctx, at(8, 0)); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if fx.log.Len() != 0 {
				t.Error("no record expected")
			}
		})
	}
}

func TestStepGuards(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := New(fx.deps, nil)

	if err := f.SelectSection(ctx, "A"); !errors.Is(err, ErrWrongStep) {
		t.Errorf("SelectSection at step 1: %v", err)
	}
	if _, err := f.SelectSubject(ctx, "math", at(8, 0)); !errors.Is(err, ErrWrongStep) {
		t.Errorf("SelectSubject at step 1: %v", err)
	}
	if err := f.SelectGrade(ctx, "9"); !errors.Is(err, ErrUnknownGrade) {
		t.Errorf("SelectGrade(9): %v", err)
	}
	_ = f.SelectGrade(ctx, "5")
	if err := f.SelectSection(ctx, "C"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("grade 5 has no section C: %v", err)
	}
	_ = f.SelectSection(ctx, "A")
	if _, err := f.SelectSubject(ctx, "chem", at(8, 0)); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("SelectSubject(chem): %v", err)
	}
	f.UpdateDraft(ctx, Draft{Name: "x", NISN: "y"})
	if _, err := f.Submit(ctx, at(8, 0)); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Submit at step 3: %v", err)
	}
}

func TestBackAndReset(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := New(fx.deps, nil)
	f.Back(ctx)
	if f.State().Step != StepGrade {
		t.Fatal("Back at step 1 should stay")
	}
	walkToSubject(t, f, "6", "B")
	f.Back(ctx)
	if s := f.State(); s.Step != StepSection || s.SectionID != "B" {
		t.Errorf("after Back: %+v", s)
	}
	f.Back(ctx)
	if err := f.SelectGrade(ctx, "4"); err != nil {
		t.Fatalf("SelectGrade: %v", err)
	}
	if f.State().SectionID != "" {
		t.Error("changing grade should drop the section")
	}
	f.Reset(ctx)
	if s := f.State(); s != (State{Step: StepGrade}) {
		t.Errorf("after Reset: %+v", s)
	}
}

func TestRestoreResumesMidFlow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.adapter.ForSession("browser-1")

	f := Restore(ctx, sess, fx.deps)
	walkToSubject(t, f, "4", "A")
	_, _ = f.SelectSubject(ctx, "math", at(8, 0))
	f.UpdateDraft(ctx, Draft{Name: "Budi", NISN: "42", ExamType: "Ujian Susulan"})

	again := Restore(ctx, sess, fx.deps)
	if s := again.State(); s.Step != StepAttendance || s.Grade != model.Grade4 || s.SectionID != "A" || s.SubjectID != "math" {
		t.Errorf("restored state = %+v", s)
	}
	if d := again.Draft(); d.Name != "Budi" || d.NISN != "42" || d.ExamType != "Ujian Susulan" {
		t.Errorf("restored draft = %+v", d)
	}

	other := Restore(ctx, fx.adapter.ForSession("browser-2"), fx.deps)
	if other.State().Step != StepGrade {
		t.Error("another browser session must start fresh")
	}

	again.Reset(ctx)
	if _, ok := sess.Get(ctx, StateKey, store.Session); ok {
		t.Error("reset should remove the stored state")
	}
	if _, ok := sess.Get(ctx, DraftKey, store.Session); ok {
		t.Error("reset should remove the stored draft")
	}
}

func TestSubmitClearsStoredDraft(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.adapter.ForSession("b")
	f := Restore(ctx, sess, fx.deps)
	walkToSubject(t, f, "4", "A")
	_, _ = f.SelectSubject(ctx, "math", at(8, 0))
	f.UpdateDraft(ctx, Draft{Name: "Budi", NISN: "42"})
	if _, err := f.Submit(ctx, at(8, 0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := sess.Get(ctx, DraftKey, store.Session); ok {
		t.Error("draft should be removed after submit")
	}
}

func TestDraftOnlyMirroredOnForm(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.adapter.ForSession("b")
	f := Restore(ctx, sess, fx.deps)
	f.UpdateDraft(ctx, Draft{Name: "early"})
	if _, ok := sess.Get(ctx, DraftKey, store.Session); ok {
		t.Error("draft stored before reaching the form")
	}
}

func TestResumeSanitizes(t *testing.T) {
	tests := []struct {
		name string
		in   State
		want State
	}{
		{"zero", State{}, State{Step: StepGrade}},
		{"unknown grade", State{Step: StepSubject, Grade: "9", SectionID: "A"}, State{Step: StepGrade}},
		{"unknown section", State{Step: StepAttendance, Grade: "5", SectionID: "C", SubjectID: "ipa"}, State{Step: StepSection, Grade: "5"}},
		{"unknown subject", State{Step: StepAttendance, Grade: "5", SectionID: "A", SubjectID: "chem"}, State{Step: StepSubject, Grade: "5", SectionID: "A"}},
		{"step out of range", State{Step: 9, Grade: "4", SectionID: "A", SubjectID: "math"}, State{Step: StepAttendance, Grade: "4", SectionID: "A", SubjectID: "math"}},
		{"back with selections", State{Step: StepSection, Grade: "4", SectionID: "A"}, State{Step: StepSection, Grade: "4", SectionID: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Resume(Deps{}, nil, tt.in, Draft{})
			if got := f.State(); got != tt.want {
				t.Errorf("state = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRestoreCorruptSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sess := fx.adapter.ForSession("b")
	_ = sess.Set(ctx, StateKey, "{{{", store.Session)
	f := Restore(ctx, sess, fx.deps)
	if f.State().Step != StepGrade {
		t.Errorf("corrupt session should start fresh, got %+v", f.State())
	}
}
