package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/sdceria/portal/internal/admin"
	"github.com/sdceria/portal/internal/attendance"
	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/gate"
	"github.com/sdceria/portal/internal/handler/views"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/schedule"
	"github.com/sdceria/portal/internal/store"
	"github.com/sdceria/portal/internal/wizard"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Adapter
	config     model.PortalConfig
	schedules  *schedule.Registry
	links      *links.Table
	attendance *attendance.Log
	gate       *gate.Gate
	auth       *admin.Auth
	now        func() time.Time
}

// New loads schedules, links and attendance from s and creates a Handler.
// linkSeeds are merged under the stored link table.
func New(ctx context.Context, s *store.Adapter, cfg model.PortalConfig, linkSeeds map[string]string) (*Handler, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, errors.New("admin username and password are required")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	schedules := schedule.NewRegistry(ctx, s)
	return &Handler{
		store:      s,
		config:     cfg,
		schedules:  schedules,
		links:      links.NewTable(ctx, s, linkSeeds),
		attendance: attendance.NewLog(ctx, s, cfg.Location),
		gate:       gate.New(schedules, cfg.Location),
		auth:       admin.NewAuth(s, admin.Credentials{Username: cfg.AdminUsername, Password: cfg.AdminPassword}),
		now:        time.Now,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.sessionMiddleware)
	r.Use(h.csrfMiddleware)

	r.Get("/", h.handleIndex)
	r.Post("/grade", h.handleGrade)
	r.Post("/section", h.handleSection)
	r.Post("/subject", h.handleSubject)
	r.Post("/back", h.handleBack)
	r.Post("/reset", h.handleReset)
	r.Post("/draft", h.handleDraft)
	r.Post("/start", h.handleStart)
	r.Get("/about", h.handleAbout)
	r.Get("/instructions", h.handleInstructions)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/", h.handleDashboard)
			r.Post("/tab", h.handleTab)
			r.Post("/filters", h.handleFilters)
			r.Post("/filters/reset", h.handleResetFilters)
			r.Post("/attendance/clear", h.handleClearAttendance)
			r.Get("/attendance.csv", h.handleExportCSV)
			r.Get("/attendance.xlsx", h.handleExportReport)
			r.Post("/schedules", h.handleSaveSchedule)
			r.Post("/schedules/cancel", h.handleCancelEdit)
			r.Post("/schedules/{id}/edit", h.handleEditSchedule)
			r.Post("/schedules/{id}/delete", h.handleDeleteSchedule)
			r.Post("/links", h.handleSaveLink)
			r.Post("/links/delete", h.handleDeleteLink)
		})
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) clock() time.Time {
	return h.now().In(h.gate.Location())
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func errorNotice(ctx context.Context, msgID string) *views.Notice {
	return &views.Notice{Kind: views.NoticeError, Title: appI18n.T(ctx, "ErrorTitle"), Lines: []string{appI18n.T(ctx, msgID)}}
}

func successNotice(ctx context.Context, msg string) *views.Notice {
	return &views.Notice{Kind: views.NoticeSuccess, Title: appI18n.T(ctx, "SuccessTitle"), Lines: []string{msg}}
}

// deniedNotice explains a closed or ended exam window.
func deniedNotice(ctx context.Context, res gate.Result) *views.Notice {
	subject := ""
	if res.Schedule != nil {
		subject = res.Schedule.SubjectID
		if s, ok := catalog.Subject(res.Schedule.SubjectID); ok {
			subject = s.Name
		}
	}
	data := map[string]any{"Subject": subject, "When": res.Description}
	if res.Status == gate.Closed {
		return &views.Notice{
			Kind:      views.NoticeInfo,
			Title:     appI18n.T(ctx, "ExamNotOpenTitle"),
			Lines:     []string{appI18n.Td(ctx, "ExamNotOpenBody", data), appI18n.T(ctx, "ComeBackLater")},
			Highlight: res.Description,
		}
	}
	return &views.Notice{
		Kind:  views.NoticeError,
		Title: appI18n.T(ctx, "ExamEndedTitle"),
		Lines: []string{appI18n.Td(ctx, "ExamEndedBody", data), appI18n.Td(ctx, "EndedAt", data)},
	}
}

var errUnknownOption = errors.New("unknown option")

var errorMessages = []struct {
	err   error
	msgID string
}{
	{wizard.ErrNameRequired, "ErrNameRequired"},
	{wizard.ErrNISNRequired, "ErrNISNRequired"},
	{wizard.ErrWrongStep, "ErrWrongStep"},
	{wizard.ErrIncomplete, "ErrWrongStep"},
	{wizard.ErrUnknownGrade, "ErrUnknownSelection"},
	{wizard.ErrUnknownSection, "ErrUnknownSelection"},
	{wizard.ErrUnknownSubject, "ErrUnknownSelection"},
	{schedule.ErrIncomplete, "ErrScheduleIncomplete"},
	{schedule.ErrInvalidWindow, "ErrScheduleWindow"},
	{schedule.ErrUnknownSubject, "ErrScheduleSubject"},
	{schedule.ErrNotFound, "ErrScheduleNotFound"},
	{links.ErrEmptyURL, "ErrLinkEmpty"},
	{links.ErrPartialKey, "ErrLinkPartial"},
	{links.ErrDefaultKey, "ErrDefaultLink"},
	{links.ErrUnknownSelection, "ErrUnknownSelection"},
	{admin.ErrNotConfirmed, "ErrNotConfirmed"},
	{admin.ErrBadCredentials, "LoginError"},
	{attendance.ErrEmpty, "ExportEmpty"},
	{errUnknownOption, "ErrUnknownSelection"},
}

// notice maps err to a translated notification and the status to answer with.
func notice(ctx context.Context, err error) (*views.Notice, int) {
	var denied *gate.DeniedError
	if errors.As(err, &denied) {
		return deniedNotice(ctx, denied.Result), http.StatusForbidden
	}
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return errorNotice(ctx, m.msgID), http.StatusUnprocessableEntity
		}
	}
	slog.Error("unexpected error", "error", err)
	return &views.Notice{
		Kind:  views.NoticeError,
		Title: appI18n.T(ctx, "ErrorTitle"),
		Lines: []string{fmt.Sprint(err)},
	}, http.StatusInternalServerError
}
