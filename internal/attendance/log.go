// Package attendance keeps the append-only log of exam check-ins.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/store"
)

// StorageKey is the durable key holding the serialized attendance list.
const StorageKey = "sas_attendance_data"

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("no attendance records")

// Log is the attendance log, newest record first.
type Log struct {
	mu      sync.Mutex
	store   *store.Adapter
	loc     *time.Location
	records []model.AttendanceRecord
	lastID  int64
}

// NewLog loads the stored log. Missing or corrupt data yields an empty log.
func NewLog(ctx context.Context, a *store.Adapter, loc *time.Location) *Log {
	if loc == nil {
		loc = time.Local
	}
	l := &Log{store: a, loc: loc}
	var records []model.AttendanceRecord
	if store.LoadJSON(ctx, a, StorageKey, store.Durable, &records) {
		l.records = records
	}
	for _, r := range l.records {
		if r.ID > l.lastID {
			l.lastID = r.ID
		}
	}
	return l
}

// Append records a check-in made at now. ID and Timestamp are assigned here;
// IDs are unix milliseconds, bumped when two check-ins share a millisecond.
func (l *Log) Append(ctx context.Context, rec model.AttendanceRecord, now time.Time) model.AttendanceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := now.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	rec.ID = id
	rec.Timestamp = FormatTimestamp(now.In(l.loc))

	l.records = append([]model.AttendanceRecord{rec}, l.records...)
	l.persist(ctx)
	slog.Info("recorded attendance", "id", id, "nisn", rec.NISN, "grade", rec.Grade, "subject", rec.Subject)
	return rec
}

// List returns a copy of all records, newest first.
func (l *Log) List() []model.AttendanceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.AttendanceRecord(nil), l.records...)
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear deletes every record.
func (l *Log) Clear(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.records)
	l.records = nil
	l.persist(ctx)
	slog.Info("cleared attendance log", "count", n)
	return n
}

func (l *Log) persist(ctx context.Context) {
	records := l.records
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	_ = store.SaveJSON(ctx, l.store, StorageKey, store.Durable, records)
}

// FormatTimestamp renders t like an Indonesian locale string: "10/6/2024, 08.30.00".
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d, %02d.%02d.%02d",
		t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}

// Filter returns the records matching every set criterion, in their original order.
// Grade and subject match exactly, rombel by substring.
func Filter(records []model.AttendanceRecord, f model.AttendanceFilter) []model.AttendanceRecord {
	var out []model.AttendanceRecord
	for _, r := range records {
		if f.Grade != "" && r.Grade != f.Grade {
			continue
		}
		if f.Rombel != "" && !strings.Contains(r.Rombel, f.Rombel) {
			continue
		}
		if f.Subject != "" && r.Subject != f.Subject {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Distinct returns the sorted unique rombel and subject names in records, for the
// dashboard filter options.
func Distinct(records []model.AttendanceRecord) (rombels, subjects []string) {
	seenR := make(map[string]bool)
	seenS := make(map[string]bool)
	for _, r := range records {
		if !seenR[r.Rombel] {
			seenR[r.Rombel] = true
			rombels = append(rombels, r.Rombel)
		}
		if !seenS[r.Subject] {
			seenS[r.Subject] = true
			subjects = append(subjects, r.Subject)
		}
	}
	c := collate.New(language.Indonesian)
	c.SortStrings(rombels)
	c.SortStrings(subjects)
	return rombels, subjects
}
