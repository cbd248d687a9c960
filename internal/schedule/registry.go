// Package schedule keeps the exam time windows, at most one per grade filter and subject.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/store"
)

// StorageKey is the durable key holding the serialized schedule list.
const StorageKey = "sas_exam_schedules"

var (
	ErrIncomplete     = errors.New("schedule needs subject, date, start and end")
	ErrInvalidWindow  = errors.New("schedule end must be after start")
	ErrUnknownSubject = errors.New("unknown subject")
	ErrNotFound       = errors.New("schedule not found")
)

// Draft is the admin form input for a schedule.
type Draft struct {
	Grade     model.GradeFilter
	SubjectID string
	Date      string
	StartTime string
	EndTime   string
}

// Validate checks that the draft describes a usable window.
func (d Draft) Validate() error {
	if d.SubjectID == "" || d.Date == "" || d.StartTime == "" || d.EndTime == "" {
		return ErrIncomplete
	}
	if _, ok := catalog.Subject(d.SubjectID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, d.SubjectID)
	}
	if _, err := time.Parse(model.DateLayout, d.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrInvalidWindow, d.Date)
	}
	start, err := time.Parse(model.ClockLayout, d.StartTime)
	if err != nil {
		return fmt.Errorf("%w: bad start time %q", ErrInvalidWindow, d.StartTime)
	}
	end, err := time.Parse(model.ClockLayout, d.EndTime)
	if err != nil {
		return fmt.Errorf("%w: bad end time %q", ErrInvalidWindow, d.EndTime)
	}
	if !end.After(start) {
		return ErrInvalidWindow
	}
	return nil
}

// Registry holds the schedule list and writes it back wholesale after every change.
type Registry struct {
	mu    sync.Mutex
	store *store.Adapter
	items []model.ExamSchedule
	newID func() string
}

// NewRegistry loads the stored schedules. Missing or corrupt data yields an empty list.
func NewRegistry(ctx context.Context, a *store.Adapter) *Registry {
	r := &Registry{store: a, newID: uuid.NewString}
	var items []model.ExamSchedule
	if store.LoadJSON(ctx, a, StorageKey, store.Durable, &items) {
		r.items = items
	}
	sortByDate(r.items)
	slog.Debug("loaded schedules", "count", len(r.items))
	return r
}

// List returns a copy of all schedules, ordered by date.
func (r *Registry) List() []model.ExamSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ExamSchedule(nil), r.items...)
}

// Get returns the schedule with id.
func (r *Registry) Get(id string) (model.ExamSchedule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.ID == id {
			return s, true
		}
	}
	return model.ExamSchedule{}, false
}

// Upsert saves d. Any schedule with the same grade filter and subject is replaced,
// as is the schedule being edited (editingID, may be empty). The saved schedule
// keeps editingID when one is given.
func (r *Registry) Upsert(ctx context.Context, d Draft, editingID string) (model.ExamSchedule, error) {
	if err := d.Validate(); err != nil {
		return model.ExamSchedule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0:0]
	for _, s := range r.items {
		conflict := s.Grade == d.Grade && s.SubjectID == d.SubjectID
		self := editingID != "" && s.ID == editingID
		if !conflict && !self {
			kept = append(kept, s)
		}
	}

	id := editingID
	if id == "" {
		id = r.newID()
	}
	saved := model.ExamSchedule{
		ID:        id,
		Grade:     d.Grade,
		SubjectID: d.SubjectID,
		Date:      d.Date,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
	}
	kept = append(kept, saved)
	sortByDate(kept)
	r.items = kept
	r.persist(ctx)

	slog.Info("saved schedule", "id", id, "grade", d.Grade, "subject", d.SubjectID, "date", d.Date)
	return saved, nil
}

// Remove deletes the schedule with id. It reports whether anything was removed.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.items {
		if s.ID == id {
			r.items = append(r.items[:i:i], r.items[i+1:]...)
			r.persist(ctx)
			slog.Info("deleted schedule", "id", id)
			return true
		}
	}
	return false
}

// Resolve returns the schedule governing grade and subjectID.
func (r *Registry) Resolve(grade model.GradeLevel, subjectID string) (model.ExamSchedule, bool) {
	return Resolve(r.List(), grade, subjectID)
}

// Resolve picks, among schedules for subjectID that cover grade, the most specific
// one: a grade-specific schedule overrides an all-grades schedule. It returns false
// when no schedule applies, which means access is unrestricted.
func Resolve(schedules []model.ExamSchedule, grade model.GradeLevel, subjectID string) (model.ExamSchedule, bool) {
	var best model.ExamSchedule
	found := false
	for _, s := range schedules {
		if s.SubjectID != subjectID || !s.Grade.Matches(grade) {
			continue
		}
		if !found || s.Grade.Specificity() > best.Grade.Specificity() {
			best = s
			found = true
		}
	}
	return best, found
}

func (r *Registry) persist(ctx context.Context) {
	_ = store.SaveJSON(ctx, r.store, StorageKey, store.Durable, r.items)
}

func sortByDate(items []model.ExamSchedule) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].StartTime < items[j].StartTime
	})
}
