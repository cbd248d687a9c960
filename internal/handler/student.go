package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/gate"
	"github.com/sdceria/portal/internal/handler/views"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/wizard"
)

func (h *Handler) flow(r *http.Request) *wizard.Flow {
	return wizard.Restore(r.Context(), h.session(r), wizard.Deps{
		Gate:       h.gate,
		Links:      h.links,
		Attendance: h.attendance,
	})
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) renderStudent(w http.ResponseWriter, r *http.Request, f *wizard.Flow, n *views.Notice, status int) {
	s := f.State()
	v := views.StudentView{
		Info:      catalog.Info(),
		State:     s,
		Draft:     f.Draft(),
		Grades:    catalog.Grades(),
		Sections:  catalog.Sections(s.Grade),
		Subjects:  catalog.Subjects(),
		ExamTypes: catalog.ExamTypes,
		Notice:    n,
	}
	v.Section, _ = f.Section()
	v.Subject, _ = f.Subject()
	if s.Step == wizard.StepSubject {
		now := h.clock()
		v.Status = make(map[string]gate.Result, len(v.Subjects))
		for _, subj := range v.Subjects {
			v.Status[subj.ID] = h.gate.Evaluate(s.Grade, subj.ID, now)
		}
	}
	render(w, r, status, views.StudentPage(v))
}

// fail re-renders the wizard with a notification for err. Nothing was changed.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, f *wizard.Flow, err error) {
	n, status := notice(r.Context(), err)
	h.renderStudent(w, r, f, n, status)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderStudent(w, r, h.flow(r), nil, http.StatusOK)
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	f := h.flow(r)
	if err := f.SelectGrade(r.Context(), r.FormValue("grade")); err != nil {
		h.fail(w, r, f, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleSection(w http.ResponseWriter, r *http.Request) {
	f := h.flow(r)
	if err := f.SelectSection(r.Context(), r.FormValue("section")); err != nil {
		h.fail(w, r, f, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleSubject(w http.ResponseWriter, r *http.Request) {
	f := h.flow(r)
	if _, err := f.SelectSubject(r.Context(), r.FormValue("subject"), h.clock()); err != nil {
		h.fail(w, r, f, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	h.flow(r).Back(r.Context())
	h.redirectHome(w, r)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.flow(r).Reset(r.Context())
	h.redirectHome(w, r)
}

func draftFromForm(r *http.Request) wizard.Draft {
	return wizard.Draft{
		Name:     r.FormValue("name"),
		NISN:     r.FormValue("nisn"),
		ExamType: r.FormValue("examType"),
	}
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	h.flow(r).UpdateDraft(r.Context(), draftFromForm(r))
	if r.Header.Get("X-Requested-With") == "fetch" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := h.flow(r)
	f.UpdateDraft(ctx, draftFromForm(r))

	sub, err := f.Submit(ctx, h.clock())
	var denied *gate.DeniedError
	if errors.As(err, &denied) {
		// The window closed while the form was open.
		h.renderStudent(w, r, f, &views.Notice{
			Kind:      views.NoticeError,
			Title:     appI18n.T(ctx, "AccessDeniedTitle"),
			Lines:     []string{appI18n.T(ctx, "AccessDeniedBody")},
			Highlight: denied.Result.Description,
		}, http.StatusForbidden)
		return
	}
	if err != nil {
		h.fail(w, r, f, err)
		return
	}

	slog.Info("attendance recorded",
		"id", sub.Record.ID,
		"grade", sub.Record.Grade,
		"rombel", sub.Record.Rombel,
		"subject", sub.Record.Subject,
	)
	render(w, r, http.StatusOK, views.LaunchPage(catalog.Info(), sub.Record, sub.URL))
}

func (h *Handler) handleAbout(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.AboutPage(catalog.Info()))
}

func (h *Handler) handleInstructions(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.InstructionsPage(catalog.Info()))
}
