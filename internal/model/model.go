package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GradeLevel is one of the fixed school grades that sit the exam.
type GradeLevel string

const (
	Grade4 GradeLevel = "4"
	Grade5 GradeLevel = "5"
	Grade6 GradeLevel = "6"
)

// Valid reports whether g is a known grade.
func (g GradeLevel) Valid() bool {
	switch g {
	case Grade4, Grade5, Grade6:
		return true
	}
	return false
}

// allGradesTag is the stored form of a schedule that applies to every grade.
const allGradesTag = "ALL"

// GradeFilter is either a specific grade or all grades. The zero value is AllGrades.
type GradeFilter struct {
	grade GradeLevel
}

// AllGrades matches every grade.
func AllGrades() GradeFilter { return GradeFilter{} }

// Specific matches exactly g.
func Specific(g GradeLevel) GradeFilter { return GradeFilter{grade: g} }

// ParseGradeFilter accepts "ALL" or a grade level.
func ParseGradeFilter(s string) (GradeFilter, error) {
	if s == allGradesTag || s == "" {
		return AllGrades(), nil
	}
	g := GradeLevel(s)
	if !g.Valid() {
		return GradeFilter{}, fmt.Errorf("unknown grade %q", s)
	}
	return Specific(g), nil
}

// IsAll reports whether f applies to every grade.
func (f GradeFilter) IsAll() bool { return f.grade == "" }

// Grade returns the specific grade and true, or "" and false for AllGrades.
func (f GradeFilter) Grade() (GradeLevel, bool) {
	return f.grade, f.grade != ""
}

// Matches reports whether f covers g.
func (f GradeFilter) Matches(g GradeLevel) bool {
	return f.IsAll() || f.grade == g
}

// Specificity ranks filters for tie-breaking: a specific grade beats all grades.
func (f GradeFilter) Specificity() int {
	if f.IsAll() {
		return 0
	}
	return 1
}

func (f GradeFilter) String() string {
	if f.IsAll() {
		return allGradesTag
	}
	return string(f.grade)
}

func (f GradeFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *GradeFilter) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGradeFilter(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Section is a class section ("rombel") within a grade.
type Section struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is an exam subject shared by all grades.
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Date and clock layouts used by stored schedules.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ExamSchedule is a time window during which an exam may be started.
type ExamSchedule struct {
	ID        string      `json:"id"`
	Grade     GradeFilter `json:"grade"`
	SubjectID string      `json:"subjectId"`
	Date      string      `json:"date"`      // YYYY-MM-DD
	StartTime string      `json:"startTime"` // HH:mm
	EndTime   string      `json:"endTime"`   // HH:mm
}

// Start returns the window start as an instant in loc.
func (s ExamSchedule) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+s.StartTime, loc)
}

// End returns the window end as an instant in loc.
func (s ExamSchedule) End(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+s.EndTime, loc)
}

// AttendanceRecord is a single student check-in. Records are never mutated.
type AttendanceRecord struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	NISN      string `json:"nisn"`
	Grade     string `json:"grade"`
	Rombel    string `json:"rombel"`
	Subject   string `json:"subject"`
	ExamType  string `json:"examType"`
}

// AttendanceFilter narrows the attendance log. Empty fields match everything.
type AttendanceFilter struct {
	Grade   string `json:"grade"`
	Rombel  string `json:"rombel"`
	Subject string `json:"subject"`
}

// IsZero reports whether no criterion is set.
func (f AttendanceFilter) IsZero() bool {
	return f.Grade == "" && f.Rombel == "" && f.Subject == ""
}

// AppInfo holds the static texts shown on the portal.
type AppInfo struct {
	Title      string
	Welcome    string
	Motivation string
	Copyright  string
}

// PortalConfig holds runtime parameters set via CLI flags.
type PortalConfig struct {
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool
	Location      *time.Location
	AdminUsername string
	AdminPassword string
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
