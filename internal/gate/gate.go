// Package gate decides whether an exam may be started right now.
package gate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/schedule"
)

// Status is the access state of an exam.
type Status string

const (
	Open   Status = "open"
	Closed Status = "closed" // not started yet
	Ended  Status = "ended"
)

// Result is the outcome of an evaluation. For Closed it carries the window start,
// for Ended the window end.
type Result struct {
	Status      Status
	Schedule    *model.ExamSchedule
	At          time.Time
	Description string
}

// Err returns nil for an open exam and a *DeniedError otherwise.
func (r Result) Err() error {
	if r.Status == Open {
		return nil
	}
	return &DeniedError{Result: r}
}

// DeniedError reports that the exam window does not admit the student.
type DeniedError struct {
	Result Result
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("exam %s: %s", e.Result.Status, e.Result.Description)
}

// Evaluate computes the access state for grade and subjectID at now. Schedule
// instants are interpreted in loc. It has no side effects besides logging.
func Evaluate(schedules []model.ExamSchedule, grade model.GradeLevel, subjectID string, now time.Time, loc *time.Location) Result {
	s, ok := schedule.Resolve(schedules, grade, subjectID)
	if !ok {
		return Result{Status: Open}
	}

	start, err := s.Start(loc)
	if err != nil {
		slog.Warn("ignoring unreadable schedule", "id", s.ID, "error", err)
		return Result{Status: Open}
	}
	end, err := s.End(loc)
	if err != nil {
		slog.Warn("ignoring unreadable schedule", "id", s.ID, "error", err)
		return Result{Status: Open}
	}

	switch {
	case now.Before(start):
		return Result{Status: Closed, Schedule: &s, At: start, Description: Describe(start)}
	case now.After(end):
		return Result{Status: Ended, Schedule: &s, At: end, Description: Describe(end)}
	default:
		return Result{Status: Open, Schedule: &s}
	}
}

// Lister supplies the current schedules.
type Lister interface {
	List() []model.ExamSchedule
}

// Gate evaluates against a live schedule source. Nothing is cached, every call
// reads the schedules afresh.
type Gate struct {
	schedules Lister
	loc       *time.Location
}

// New creates a Gate. A nil loc means time.Local.
func New(schedules Lister, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.Local
	}
	return &Gate{schedules: schedules, loc: loc}
}

// Evaluate computes the access state at now.
func (g *Gate) Evaluate(grade model.GradeLevel, subjectID string, now time.Time) Result {
	return Evaluate(g.schedules.List(), grade, subjectID, now, g.loc)
}

// Location returns the zone schedules are interpreted in.
func (g *Gate) Location() *time.Location {
	return g.loc
}
