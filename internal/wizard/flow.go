// Package wizard implements the four-step student flow: grade, section, subject,
// then the attendance form that sends the student to the exam.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/gate"
	"github.com/sdceria/portal/internal/model"
)

// Step is a wizard position.
type Step int

const (
	StepGrade Step = iota + 1
	StepSection
	StepSubject
	StepAttendance
)

var (
	ErrWrongStep      = errors.New("action not available at this step")
	ErrUnknownGrade   = errors.New("unknown grade")
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownSubject = errors.New("unknown subject")
	ErrNameRequired   = errors.New("name is required")
	ErrNISNRequired   = errors.New("NISN is required")
	ErrIncomplete     = errors.New("grade, section and subject must be selected")
)

// State is the wizard position and selections.
type State struct {
	Step      Step             `json:"step"`
	Grade     model.GradeLevel `json:"grade,omitempty"`
	SectionID string           `json:"rombelId,omitempty"`
	SubjectID string           `json:"subjectId,omitempty"`
}

// Draft is the in-progress attendance form.
type Draft struct {
	Name     string `json:"name"`
	NISN     string `json:"nisn"`
	ExamType string `json:"examType"`
}

func newDraft() Draft {
	return Draft{ExamType: catalog.DefaultExamType}
}

// Submission is the outcome of a successful exam start.
type Submission struct {
	Record model.AttendanceRecord
	URL    string
}

// Evaluator decides whether an exam is open.
type Evaluator interface {
	Evaluate(grade model.GradeLevel, subjectID string, now time.Time) gate.Result
}

// Resolver maps a selection to the exam URL.
type Resolver interface {
	Resolve(grade, sectionID, subjectID string) string
}

// Recorder appends attendance records.
type Recorder interface {
	Append(ctx context.Context, rec model.AttendanceRecord, now time.Time) model.AttendanceRecord
}

// Deps are the collaborators a flow needs.
type Deps struct {
	Gate       Evaluator
	Links      Resolver
	Attendance Recorder
}

// Observer is told about every change so it can mirror the flow elsewhere.
type Observer interface {
	OnState(ctx context.Context, s State)
	OnDraft(ctx context.Context, d Draft)
	OnDraftCleared(ctx context.Context)
	OnReset(ctx context.Context)
}

type nopObserver struct{}

func (nopObserver) OnState(context.Context, State) {}
func (nopObserver) OnDraft(context.Context, Draft) {}
func (nopObserver) OnDraftCleared(context.Context) {}
func (nopObserver) OnReset(context.Context) {}

// Flow is one student's wizard.
type Flow struct {
	deps  Deps
	obs   Observer
	state State
	draft Draft
}

// New creates a flow at the first step. obs may be nil.
func New(deps Deps, obs Observer) *Flow {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Flow{deps: deps, obs: obs, state: State{Step: StepGrade}, draft: newDraft()}
}

// Resume creates a flow from previously saved state and draft. Selections the
// catalog no longer knows are dropped and the step is pulled back accordingly.
func Resume(deps Deps, obs Observer, s State, d Draft) *Flow {
	f := New(deps, obs)
	f.state = sanitize(s)
	if d.ExamType == "" {
		d.ExamType = catalog.DefaultExamType
	}
	f.draft = d
	return f
}

func sanitize(s State) State {
	out := State{Step: StepGrade}
	maxStep := StepGrade
	if _, ok := catalog.ParseGrade(string(s.Grade)); ok {
		out.Grade = s.Grade
		maxStep = StepSection
		if _, ok := catalog.Section(s.Grade, s.SectionID); ok {
			out.SectionID = s.SectionID
			maxStep = StepSubject
			if _, ok := catalog.Subject(s.SubjectID); ok {
				out.SubjectID = s.SubjectID
				maxStep = StepAttendance
			}
		}
	}
	if s.Step >= StepGrade && s.Step <= maxStep {
		out.Step = s.Step
	} else if s.Step > maxStep {
		out.Step = maxStep
	}
	return out
}

// State returns the current position and selections.
func (f *Flow) State() State { return f.state }

// Draft returns the current form draft.
func (f *Flow) Draft() Draft { return f.draft }

// Section returns the selected section, if any.
func (f *Flow) Section() (model.Section, bool) {
	return catalog.Section(f.state.Grade, f.state.SectionID)
}

// Subject returns the selected subject, if any.
func (f *Flow) Subject() (model.Subject, bool) {
	return catalog.Subject(f.state.SubjectID)
}

func (f *Flow) expect(step Step) error {
	if f.state.Step != step {
		return fmt.Errorf("%w: at step %d, need %d", ErrWrongStep, f.state.Step, step)
	}
	return nil
}

// SelectGrade picks the grade and moves to section selection.
func (f *Flow) SelectGrade(ctx context.Context, grade string) error {
	if err := f.expect(StepGrade); err != nil {
		return err
	}
	g, ok := catalog.ParseGrade(grade)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGrade, grade)
	}
	if g != f.state.Grade {
		f.state.SectionID = ""
		f.state.SubjectID = ""
	}
	f.state.Grade = g
	f.state.Step = StepSection
	f.obs.OnState(ctx, f.state)
	return nil
}

// SelectSection picks the section and moves to subject selection.
func (f *Flow) SelectSection(ctx context.Context, sectionID string) error {
	if err := f.expect(StepSection); err != nil {
		return err
	}
	if _, ok := catalog.Section(f.state.Grade, sectionID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, sectionID)
	}
	f.state.SectionID = sectionID
	f.state.Step = StepSubject
	f.obs.OnState(ctx, f.state)
	return nil
}

// SelectSubject picks the subject and moves to the attendance form, but only if the
// exam is open at now. Otherwise the flow stays put and the gate result, wrapped in
// a *gate.DeniedError, explains why.
func (f *Flow) SelectSubject(ctx context.Context, subjectID string, now time.Time) (gate.Result, error) {
	if err := f.expect(StepSubject); err != nil {
		return gate.Result{}, err
	}
	if _, ok := catalog.Subject(subjectID); !ok {
		return gate.Result{}, fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	res := f.deps.Gate.Evaluate(f.state.Grade, subjectID, now)
	if err := res.Err(); err != nil {
		return res, err
	}
	f.state.SubjectID = subjectID
	f.state.Step = StepAttendance
	f.obs.OnState(ctx, f.state)
	return res, nil
}

// Back moves one step back. Selections are kept.
func (f *Flow) Back(ctx context.Context) {
	if f.state.Step > StepGrade {
		f.state.Step--
		f.obs.OnState(ctx, f.state)
	}
}

// Reset returns to the first step and forgets selections and draft.
func (f *Flow) Reset(ctx context.Context) {
	f.state = State{Step: StepGrade}
	f.draft = newDraft()
	f.obs.OnReset(ctx)
}

// UpdateDraft replaces the form draft. It is only mirrored while the form is shown.
func (f *Flow) UpdateDraft(ctx context.Context, d Draft) {
	if d.ExamType == "" {
		d.ExamType = catalog.DefaultExamType
	}
	f.draft = d
	if f.state.Step == StepAttendance {
		f.obs.OnDraft(ctx, f.draft)
	}
}

// Submit starts the exam: it checks the form, re-checks the exam window, records
// attendance, clears the draft and returns the URL to open.
func (f *Flow) Submit(ctx context.Context, now time.Time) (Submission, error) {
	name := strings.TrimSpace(f.draft.Name)
	nisn := strings.TrimSpace(f.draft.NISN)
	if name == "" {
		return Submission{}, ErrNameRequired
	}
	if nisn == "" {
		return Submission{}, ErrNISNRequired
	}
	if err := f.expect(StepAttendance); err != nil {
		return Submission{}, err
	}
	section, okSection := f.Section()
	subject, okSubject := f.Subject()
	if !okSection || !okSubject {
		return Submission{}, ErrIncomplete
	}

	// The window may have closed while the form was open.
	if err := f.deps.Gate.Evaluate(f.state.Grade, subject.ID, now).Err(); err != nil {
		return Submission{}, err
	}

	rec := f.deps.Attendance.Append(ctx, model.AttendanceRecord{
		Name:     name,
		NISN:     nisn,
		Grade:    string(f.state.Grade),
		Rombel:   section.Name,
		Subject:  subject.Name,
		ExamType: f.draft.ExamType,
	}, now)

	f.draft = newDraft()
	f.obs.OnDraftCleared(ctx)

	url := f.deps.Links.Resolve(string(f.state.Grade), section.ID, subject.ID)
	return Submission{Record: rec, URL: url}, nil
}
