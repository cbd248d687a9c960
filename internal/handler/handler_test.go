package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	appI18n "github.com/sdceria/portal/internal/i18n"
	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/schedule"
	"github.com/sdceria/portal/internal/store"
)

var wib = time.FixedZone("WIB", 7*3600)

func TestMain(m *testing.M) {
	if err := appI18n.Init("id"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	h      *Handler
	router http.Handler
	now    time.Time
}

func newTestServer(t *testing.T, basePath string) *testServer {
	t.Helper()
	db, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	a := store.NewAdapter(db, store.NewMemory(0))

	h, err := New(context.Background(), a, model.PortalConfig{
		BasePath:      basePath,
		Location:      wib,
		AdminUsername: "Admin",
		AdminPassword: "Admin",
	}, map[string]string{
		"default":  "https://forms.example/default",
		"4-A-math": "https://forms.example/4a-math",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := &testServer{h: h, now: time.Date(2024, 6, 10, 8, 30, 0, 0, wib)}
	h.now = func() time.Time { return ts.now }

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("id"))
	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	ts.router = r
	return ts
}

func (ts *testServer) at(hour, min int) {
	ts.now = time.Date(2024, 6, 10, hour, min, 0, 0, wib)
}

// client is one browser: it keeps cookies between requests.
type client struct {
	t       *testing.T
	ts      *testServer
	prefix  string
	cookies map[string]*http.Cookie
}

func (ts *testServer) client(t *testing.T) *client {
	return &client{t: t, ts: ts, prefix: ts.h.config.BasePath, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.ts.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.do(httptest.NewRequest(http.MethodGet, c.prefix+path, nil))
}

// post sends form with the browser's CSRF token, fetching one first if needed.
func (c *client) post(path string, form url.Values, header ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	if _, ok := c.cookies[csrfCookieName]; !ok {
		c.get("/")
	}
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", c.cookies[csrfCookieName].Value)
	}
	req := httptest.NewRequest(http.MethodPost, c.prefix+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return c.do(req)
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("body does not contain %q", want)
	}
}

func (c *client) walkTo(grade, section, subject string) {
	c.t.Helper()
	expectStatus(c.t, c.post("/grade", url.Values{"grade": {grade}}), http.StatusSeeOther)
	expectStatus(c.t, c.post("/section", url.Values{"section": {section}}), http.StatusSeeOther)
	if subject != "" {
		expectStatus(c.t, c.post("/subject", url.Values{"subject": {subject}}), http.StatusSeeOther)
	}
}

func (ts *testServer) addSchedule(t *testing.T, grade model.GradeFilter, subject, start, end string) {
	t.Helper()
	_, err := ts.h.schedules.Upsert(context.Background(), schedule.Draft{
		Grade: grade, SubjectID: subject, Date: "2024-06-10", StartTime: start, EndTime: end,
	}, "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestStudentFlow(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)

	rec := c.get("/")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, `data-step="1"`)
	expectBody(t, rec, "Pilih Kelas")

	c.walkTo("4", "A", "math")
	rec = c.get("/")
	expectBody(t, rec, `data-step="4"`)
	expectBody(t, rec, "Formulir Daftar Hadir")

	rec = c.post("/start", url.Values{"name": {"Budi"}, "nisn": {"0012345678"}, "examType": {"Ujian Susulan"}})
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "https://forms.example/4a-math")
	expectBody(t, rec, "window.open")

	records := ts.h.attendance.List()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if r := records[0]; r.Name != "Budi" || r.Rombel != "Rombel 4A" || r.ExamType != "Ujian Susulan" {
		t.Errorf("record = %+v", r)
	}
}

func TestStartFallsBackToDefaultLink(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	c.walkTo("5", "B", "ipa")
	rec := c.post("/start", url.Values{"name": {"Siti"}, "nisn": {"1"}})
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "https://forms.example/default")
}

func TestSubjectGate(t *testing.T) {
	ts := newTestServer(t, "")
	ts.addSchedule(t, model.Specific(model.Grade4), "math", "08:00", "09:00")
	c := ts.client(t)
	c.walkTo("4", "A", "")

	ts.at(7, 30)
	rec := c.get("/")
	expectBody(t, rec, `data-status="closed"`)

	rec = c.post("/subject", url.Values{"subject": {"math"}})
	expectStatus(t, rec, http.StatusForbidden)
	expectBody(t, rec, "Ujian Belum Dibuka")
	expectBody(t, rec, "Senin, 10 Juni 2024, Pukul 08:00 WIB")
	expectBody(t, rec, `data-step="3"`)

	ts.at(9, 1)
	rec = c.post("/subject", url.Values{"subject": {"math"}})
	expectStatus(t, rec, http.StatusForbidden)
	expectBody(t, rec, "Waktu Ujian Habis")

	ts.at(8, 0)
	expectStatus(t, c.post("/subject", url.Values{"subject": {"math"}}), http.StatusSeeOther)
}

func TestStartRechecksGate(t *testing.T) {
	ts := newTestServer(t, "")
	ts.addSchedule(t, model.AllGrades(), "math", "08:00", "09:00")
	c := ts.client(t)
	ts.at(8, 55)
	c.walkTo("4", "A", "math")

	ts.at(9, 5)
	rec := c.post("/start", url.Values{"name": {"Budi"}, "nisn": {"1"}})
	expectStatus(t, rec, http.StatusForbidden)
	expectBody(t, rec, "Akses Ditolak")
	if ts.h.attendance.Len() != 0 {
		t.Error("attendance recorded after the window closed")
	}
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing name", url.Values{"name": {" "}, "nisn": {"1"}}, "Harap isi Nama Lengkap!"},
		{"missing nisn", url.Values{"name": {"Budi"}}, "Harap isi NISN!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "")
			c := ts.client(t)
			c.walkTo("4", "A", "math")
			rec := c.post("/start", tt.form)
			expectStatus(t, rec, http.StatusUnprocessableEntity)
			expectBody(t, rec, tt.want)
			if ts.h.attendance.Len() != 0 {
				t.Error("no record expected")
			}
		})
	}
}

func TestWrongStep(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	rec := c.post("/section", url.Values{"section": {"A"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, `data-step="1"`)

	rec = c.post("/grade", url.Values{"grade": {"7"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "Pilihan tidak dikenal.")
}

func TestBackAndReset(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	c.walkTo("6", "B", "ipa")

	expectStatus(t, c.post("/back", nil), http.StatusSeeOther)
	expectBody(t, c.get("/"), `data-step="3"`)
	expectStatus(t, c.post("/reset", nil), http.StatusSeeOther)
	expectBody(t, c.get("/"), `data-step="1"`)
}

func TestDraftSurvivesReload(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	c.walkTo("4", "A", "math")

	rec := c.post("/draft", url.Values{"name": {"Budi <b>"}, "nisn": {"42"}}, "X-Requested-With", "fetch")
	expectStatus(t, rec, http.StatusNoContent)

	rec = c.get("/")
	expectBody(t, rec, `value="Budi &lt;b&gt;"`)
	expectBody(t, rec, `value="42"`)
}

func TestSessionsAreSeparate(t *testing.T) {
	ts := newTestServer(t, "")
	a := ts.client(t)
	b := ts.client(t)
	a.walkTo("4", "A", "math")

	expectBody(t, b.get("/"), `data-step="1"`)
	expectBody(t, a.get("/"), `data-step="4"`)
}

func TestCSRFRequired(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	c.get("/")

	rec := c.post("/grade", url.Values{"grade": {"4"}, "csrf_token": {"forged"}})
	expectStatus(t, rec, http.StatusForbidden)

	req := httptest.NewRequest(http.MethodPost, "/grade", strings.NewReader("grade=4"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestClockUsesScheduleZone(t *testing.T) {
	ts := newTestServer(t, "")
	ts.now = time.Date(2024, 6, 10, 1, 30, 0, 0, time.UTC)
	got := ts.h.clock()
	if got.Location() != wib || got.Hour() != 8 {
		t.Errorf("clock = %v, want 08:30 WIB", got)
	}
}

func TestStaticPages(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	expectBody(t, c.get("/about"), "Tentang SAS")
	expectBody(t, c.get("/instructions"), "Petunjuk Penggunaan")
}

func login(t *testing.T, c *client) {
	t.Helper()
	c.get("/admin/login")
	rec := c.post("/admin/login", url.Values{"username": {"Admin"}, "password": {"Admin"}})
	expectStatus(t, rec, http.StatusSeeOther)
}

func TestAdminRequiresLogin(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)

	rec := c.get("/admin")
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("Location = %q", loc)
	}

	c.get("/admin/login")
	rec = c.post("/admin/login", url.Values{"username": {"Admin"}, "password": {"wrong"}})
	expectStatus(t, rec, http.StatusUnauthorized)
	expectBody(t, rec, "Username atau Password salah!")
	expectBody(t, rec, `value="Admin"`)

	login(t, c)
	rec = c.get("/admin")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Dashboard Guru")

	expectStatus(t, c.post("/admin/logout", nil), http.StatusSeeOther)
	expectStatus(t, c.get("/admin"), http.StatusSeeOther)
}

func TestAdminTabs(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	login(t, c)

	expectStatus(t, c.post("/admin/tab", url.Values{"tab": {"links"}}), http.StatusSeeOther)
	rec := c.get("/admin")
	expectBody(t, rec, `data-tab="links"`)
	expectBody(t, rec, "https://forms.example/4a-math")

	expectStatus(t, c.post("/admin/tab", url.Values{"tab": {"nope"}}), http.StatusUnprocessableEntity)
}

func TestAdminSchedules(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	login(t, c)
	c.post("/admin/tab", url.Values{"tab": {"schedule"}})

	form := url.Values{"grade": {"4"}, "subject": {"math"}, "date": {"2024-06-10"}, "start": {"08:00"}, "end": {"09:00"}}
	rec := c.post("/admin/schedules", form)
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Jadwal ujian baru berhasil ditambahkan.")
	expectBody(t, rec, "Senin, 10 Juni 2024")

	list := ts.h.schedules.List()
	if len(list) != 1 {
		t.Fatalf("schedules = %d", len(list))
	}
	id := list[0].ID

	expectStatus(t, c.post("/admin/schedules/"+id+"/edit", nil), http.StatusSeeOther)
	expectBody(t, c.get("/admin"), "Edit Jadwal")

	form.Set("end", "10:00")
	rec = c.post("/admin/schedules", form)
	expectBody(t, rec, "Jadwal berhasil diperbarui.")
	if got := ts.h.schedules.List(); len(got) != 1 || got[0].ID != id || got[0].EndTime != "10:00" {
		t.Errorf("after edit = %+v", got)
	}

	form.Set("end", "07:00")
	rec = c.post("/admin/schedules", form)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "Jam selesai harus setelah jam mulai.")

	rec = c.post("/admin/schedules", url.Values{"grade": {"ALL"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "Mohon lengkapi semua data jadwal")

	expectStatus(t, c.post("/admin/schedules/"+id+"/delete", nil), http.StatusUnprocessableEntity)
	expectStatus(t, c.post("/admin/schedules/"+id+"/delete", url.Values{"confirmed": {"yes"}}), http.StatusOK)
	if len(ts.h.schedules.List()) != 0 {
		t.Error("schedule not deleted")
	}
}

func TestAdminLinks(t *testing.T) {
	ts := newTestServer(t, "")
	c := ts.client(t)
	login(t, c)

	rec := c.post("/admin/links", url.Values{"grade": {"5"}, "section": {"A"}, "subject": {"ipa"}, "url": {"https://forms.example/5a-ipa"}})
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "Link ujian untuk 5-A-ipa berhasil disimpan.")
	if got := ts.h.links.Resolve("5", "A", "ipa"); got != "https://forms.example/5a-ipa" {
		t.Errorf("Resolve = %q", got)
	}
	if got := ts.h.links.Resolve("5", "B", "ipa"); got != "https://forms.example/default" {
		t.Errorf("other triple resolved to %q", got)
	}

	rec = c.post("/admin/links", url.Values{"grade": {"5"}, "url": {"https://x"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "harap pilih Kelas, Rombel, dan Mapel")

	rec = c.post("/admin/links", url.Values{"grade": {"9"}, "section": {"Z"}, "subject": {"nosuch"}, "url": {"https://x"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "Pilihan tidak dikenal.")
	if len(ts.h.links.Entries()) != 3 {
		t.Errorf("unknown combination stored: %+v", ts.h.links.Entries())
	}

	expectStatus(t, c.post("/admin/links/delete", url.Values{"key": {"default"}, "confirmed": {"yes"}}), http.StatusUnprocessableEntity)
	expectStatus(t, c.post("/admin/links/delete", url.Values{"key": {"5-A-ipa"}, "confirmed": {"yes"}}), http.StatusOK)
	if got := ts.h.links.Resolve("5", "A", "ipa"); got != "https://forms.example/default" {
		t.Errorf("deleted link still resolves to %q", got)
	}
}

func addAttendance(t *testing.T, ts *testServer) {
	t.Helper()
	c := ts.client(t)
	c.walkTo("4", "A", "math")
	expectStatus(t, c.post("/start", url.Values{"name": {"Budi"}, "nisn": {"1"}}), http.StatusOK)
}

func TestAdminAttendance(t *testing.T) {
	ts := newTestServer(t, "")
	addAttendance(t, ts)
	c := ts.client(t)
	login(t, c)

	rec := c.get("/admin")
	expectBody(t, rec, "Budi")
	expectBody(t, rec, "1 data presensi")

	expectStatus(t, c.post("/admin/filters", url.Values{"grade": {"5"}}), http.StatusSeeOther)
	expectBody(t, c.get("/admin"), "Belum ada data presensi.")
	expectStatus(t, c.get("/admin/attendance.csv"), http.StatusUnprocessableEntity)
	expectStatus(t, c.post("/admin/filters/reset", nil), http.StatusSeeOther)

	rec = c.post("/admin/attendance/clear", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	expectBody(t, rec, "belum dikonfirmasi")
	if ts.h.attendance.Len() != 1 {
		t.Fatal("unconfirmed clear removed records")
	}
	rec = c.post("/admin/attendance/clear", url.Values{"confirmed": {"yes"}})
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, "1 data presensi dihapus.")
	if ts.h.attendance.Len() != 0 {
		t.Error("records not cleared")
	}
}

func TestExports(t *testing.T) {
	ts := newTestServer(t, "")
	addAttendance(t, ts)
	c := ts.client(t)
	login(t, c)

	rec := c.get("/admin/attendance.csv")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Presensi_SAS_2024-06-10.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "Waktu,Nama,NISN,Kelas,Rombel,Mapel,Jenis Ujian\n") {
		t.Errorf("csv = %q", rec.Body.String())
	}

	rec = c.get("/admin/attendance.xlsx")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Presensi", "B6"); v != "Budi" {
		t.Errorf("B6 = %q, want Budi", v)
	}
}

func TestBasePath(t *testing.T) {
	ts := newTestServer(t, "/sas")
	c := ts.client(t)

	rec := c.get("/")
	expectStatus(t, rec, http.StatusOK)
	expectBody(t, rec, `action="/sas/grade"`)

	rec = c.post("/grade", url.Values{"grade": {"4"}})
	expectStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/sas/" {
		t.Errorf("Location = %q, want /sas/", loc)
	}
	if ck := c.cookies[sessionCookieName]; ck == nil || ck.Path != "/sas/" {
		t.Errorf("session cookie = %+v", ck)
	}
}
