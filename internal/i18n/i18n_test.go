package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateIndonesian(t *testing.T) {
	ctx := initLang(t, "id")

	if got := T(ctx, "StartExam"); got != "Mulai Ujian" {
		t.Errorf("T(StartExam) = %q, want 'Mulai Ujian'", got)
	}
	if got := T(ctx, "ErrNISNRequired"); got != "Harap isi NISN!" {
		t.Errorf("T(ErrNISNRequired) = %q", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "StartExam"); got != "Start exam" {
		t.Errorf("T(StartExam) = %q, want 'Start exam'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "RecordsShown", 1); got != "1 attendance record" {
		t.Errorf("Tp(RecordsShown, 1) = %q", got)
	}
	if got := Tp(ctx, "RecordsShown", 5); got != "5 attendance records" {
		t.Errorf("Tp(RecordsShown, 5) = %q", got)
	}

	ctx = initLang(t, "id")
	if got := Tp(ctx, "RecordsShown", 5); got != "5 data presensi" {
		t.Errorf("Tp(RecordsShown, 5) id = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "id")

	got := Td(ctx, "GradeN", map[string]any{"Grade": "4"})
	if got != "Kelas 4" {
		t.Errorf("Td(GradeN) = %q, want 'Kelas 4'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "id")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestContextWithoutLocalizer(t *testing.T) {
	initLang(t, "id")

	if got := T(context.Background(), "Back"); got != "Kembali" {
		t.Errorf("fallback T(Back) = %q, want 'Kembali'", got)
	}
}

func TestMiddlewareLanguageSwitch(t *testing.T) {
	initLang(t, "id")
	var got string
	h := Middleware("id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Back")
	}))

	tests := []struct {
		name   string
		target string
		cookie string
		want   string
	}{
		{"configured", "/", "", "Kembali"},
		{"query", "/?lang=en", "", "Back"},
		{"cookie", "/", "en", "Back"},
		{"unknown query", "/?lang=fr", "", "Kembali"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: langCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got != tt.want {
				t.Errorf("T(Back) = %q, want %q", got, tt.want)
			}
		})
	}
}
