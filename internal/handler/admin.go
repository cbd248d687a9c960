package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sdceria/portal/internal/admin"
	"github.com/sdceria/portal/internal/attendance"
	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/handler/views"
	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/links"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/schedule"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) dashboard(r *http.Request) *admin.Dashboard {
	return admin.New(h.session(r), admin.Deps{
		Schedules:  h.schedules,
		Links:      h.links,
		Attendance: h.attendance,
	})
}

func (h *Handler) redirectDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/admin"), http.StatusSeeOther)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, d *admin.Dashboard, n *views.Notice, status int) {
	ctx := r.Context()
	v := views.DashboardView{
		Info:      catalog.Info(),
		Tab:       d.Tab(ctx),
		Notice:    n,
		Records:   d.Records(ctx),
		Total:     d.Total(),
		Filter:    d.Filters(ctx),
		Schedules: d.Schedules(),
		Location:  h.gate.Location(),
		Links:     d.Links(),
	}
	v.Rombels, v.SubjectNames = d.FilterOptions()
	if e, ok := d.Editing(ctx); ok {
		v.Editing = &e
	}
	render(w, r, status, views.DashboardPage(v))
}

func (h *Handler) failDashboard(w http.ResponseWriter, r *http.Request, d *admin.Dashboard, err error) {
	n, status := notice(r.Context(), err)
	h.renderDashboard(w, r, d, n, status)
}

func confirmed(r *http.Request) bool {
	return r.FormValue("confirmed") == "yes"
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, h.dashboard(r), nil, http.StatusOK)
}

func (h *Handler) handleTab(w http.ResponseWriter, r *http.Request) {
	d := h.dashboard(r)
	if _, err := d.SetTab(r.Context(), r.FormValue("tab")); err != nil {
		h.failDashboard(w, r, d, fmt.Errorf("%w: %v", errUnknownOption, err))
		return
	}
	h.redirectDashboard(w, r)
}

func (h *Handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	h.dashboard(r).SetFilters(r.Context(), model.AttendanceFilter{
		Grade:   r.FormValue("grade"),
		Rombel:  strings.TrimSpace(r.FormValue("rombel")),
		Subject: r.FormValue("subject"),
	})
	h.redirectDashboard(w, r)
}

func (h *Handler) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	h.dashboard(r).ResetFilters(r.Context())
	h.redirectDashboard(w, r)
}

func (h *Handler) handleClearAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := h.dashboard(r)
	n, err := d.ClearAttendance(ctx, confirmed(r))
	if err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	slog.Info("attendance cleared", "count", n)
	h.renderDashboard(w, r, d, successNotice(ctx, appI18n.Tp(ctx, "AttendanceCleared", n)), http.StatusOK)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	d := h.dashboard(r)
	var buf bytes.Buffer
	if err := d.ExportCSV(r.Context(), &buf); err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attendance.CSVFilename(h.clock())))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportReport(w http.ResponseWriter, r *http.Request) {
	d := h.dashboard(r)
	now := h.clock()
	var buf bytes.Buffer
	if err := d.ExportReport(r.Context(), &buf, now); err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attendance.ReportFilename(now)))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := h.dashboard(r)
	grade, err := model.ParseGradeFilter(r.FormValue("grade"))
	if err != nil {
		h.failDashboard(w, r, d, fmt.Errorf("%w: %v", errUnknownOption, err))
		return
	}
	_, edited, err := d.SaveSchedule(ctx, schedule.Draft{
		Grade:     grade,
		SubjectID: r.FormValue("subject"),
		Date:      r.FormValue("date"),
		StartTime: r.FormValue("start"),
		EndTime:   r.FormValue("end"),
	})
	if err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	msg := "ScheduleAdded"
	if edited {
		msg = "ScheduleUpdated"
	}
	h.renderDashboard(w, r, d, successNotice(ctx, appI18n.T(ctx, msg)), http.StatusOK)
}

func (h *Handler) handleEditSchedule(w http.ResponseWriter, r *http.Request) {
	d := h.dashboard(r)
	if _, err := d.BeginEdit(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	h.redirectDashboard(w, r)
}

func (h *Handler) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	h.dashboard(r).CancelEdit(r.Context())
	h.redirectDashboard(w, r)
}

func (h *Handler) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := h.dashboard(r)
	if err := d.DeleteSchedule(ctx, chi.URLParam(r, "id"), confirmed(r)); err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	h.renderDashboard(w, r, d, successNotice(ctx, appI18n.T(ctx, "ScheduleDeleted")), http.StatusOK)
}

func (h *Handler) handleSaveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := h.dashboard(r)
	key, err := d.SaveLink(ctx, r.FormValue("grade"), r.FormValue("section"), r.FormValue("subject"), r.FormValue("url"))
	if err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	label := key
	if key == links.DefaultKey {
		label = appI18n.T(ctx, "DefaultLink")
	}
	h.renderDashboard(w, r, d, successNotice(ctx, appI18n.Td(ctx, "LinkSaved", map[string]any{"Key": label})), http.StatusOK)
}

func (h *Handler) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := h.dashboard(r)
	if err := d.DeleteLink(ctx, r.FormValue("key"), confirmed(r)); err != nil {
		h.failDashboard(w, r, d, err)
		return
	}
	h.renderDashboard(w, r, d, successNotice(ctx, appI18n.T(ctx, "LinkDeleted")), http.StatusOK)
}
