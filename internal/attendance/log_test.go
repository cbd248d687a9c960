package attendance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/store"
)

var wib = time.FixedZone("WIB", 7*3600)

func newTestLog(t *testing.T) (*Log, *store.Adapter) {
	t.Helper()
	a := store.NewAdapter(store.NewMemory(0), nil)
	return NewLog(context.Background(), a, wib), a
}

func rec(name, grade, rombel, subject string) model.AttendanceRecord {
	return model.AttendanceRecord{Name: name, NISN: "00" + name, Grade: grade, Rombel: rombel, Subject: subject, ExamType: "SAS"}
}

func TestAppend(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 8, 30, 5, 0, wib)

	first := l.Append(ctx, rec("Budi", "4", "Rombel 4A", "Matematika"), now)
	second := l.Append(ctx, rec("Siti", "4", "Rombel 4A", "Matematika"), now)

	if first.ID != now.UnixMilli() {
		t.Errorf("first ID = %d, want %d", first.ID, now.UnixMilli())
	}
	if second.ID <= first.ID {
		t.Errorf("IDs not increasing: %d then %d", first.ID, second.ID)
	}
	if first.Timestamp != "10/6/2024, 08.30.05" {
		t.Errorf("Timestamp = %q", first.Timestamp)
	}

	list := l.List()
	if len(list) != 2 || list[0].Name != "Siti" {
		t.Errorf("expected newest first, got %+v", list)
	}
}

func TestLogPersistsAndClears(t *testing.T) {
	l, a := newTestLog(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, wib)
	last := l.Append(ctx, rec("Budi", "5", "Rombel 5B", "IPA"), now)

	reloaded := NewLog(ctx, a, wib)
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded Len = %d", reloaded.Len())
	}
	// A reloaded log keeps issuing unique ids even if the clock goes back.
	next := reloaded.Append(ctx, rec("Ani", "5", "Rombel 5B", "IPA"), now.Add(-time.Hour))
	if next.ID <= last.ID {
		t.Errorf("ID %d not after %d", next.ID, last.ID)
	}

	if n := reloaded.Clear(ctx); n != 2 {
		t.Errorf("Clear removed %d", n)
	}
	if NewLog(ctx, a, wib).Len() != 0 {
		t.Error("clear was not persisted")
	}
}

func TestFilter(t *testing.T) {
	records := []model.AttendanceRecord{
		rec("a", "5", "Rombel 5A", "IPA"),
		rec("b", "4", "Rombel 4A", "IPA"),
		rec("c", "5", "Rombel 5B", "Matematika"),
		rec("d", "5", "Rombel 5A", "Matematika"),
	}
	tests := []struct {
		name   string
		filter model.AttendanceFilter
		want   string
	}{
		{"none", model.AttendanceFilter{}, "abcd"},
		{"grade", model.AttendanceFilter{Grade: "5"}, "acd"},
		{"rombel substring", model.AttendanceFilter{Rombel: "5A"}, "ad"},
		{"rombel letter", model.AttendanceFilter{Rombel: "A"}, "abd"},
		{"subject", model.AttendanceFilter{Subject: "Matematika"}, "cd"},
		{"all criteria", model.AttendanceFilter{Grade: "5", Rombel: "5A", Subject: "IPA"}, "a"},
		{"subject exact only", model.AttendanceFilter{Subject: "Mate"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got strings.Builder
			for _, r := range Filter(records, tt.filter) {
				got.WriteString(r.Name)
			}
			if got.String() != tt.want {
				t.Errorf("Filter = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestDistinct(t *testing.T) {
	records := []model.AttendanceRecord{
		rec("a", "5", "Rombel 5B", "Matematika"),
		rec("b", "4", "Rombel 4A", "IPA"),
		rec("c", "5", "Rombel 5B", "Bahasa Indonesia"),
	}
	rombels, subjects := Distinct(records)
	if strings.Join(rombels, "|") != "Rombel 4A|Rombel 5B" {
		t.Errorf("rombels = %v", rombels)
	}
	if strings.Join(subjects, "|") != "Bahasa Indonesia|IPA|Matematika" {
		t.Errorf("subjects = %v", subjects)
	}
}

func TestWriteCSV(t *testing.T) {
	records := []model.AttendanceRecord{{
		Timestamp: "10/6/2024, 08.30.00",
		Name:      `Budi "Bud" Santoso, Jr`,
		NISN:      "123",
		Grade:     "4",
		Rombel:    "Rombel 4A",
		Subject:   "Matematika",
		ExamType:  "SAS",
	}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "Waktu,Nama,NISN,Kelas,Rombel,Mapel,Jenis Ujian\n" +
		`"10/6/2024, 08.30.00","Budi ""Bud"" Santoso, Jr","123","4","Rombel 4A","Matematika","SAS"`
	if buf.String() != want {
		t.Errorf("CSV =\n%s\nwant\n%s", buf.String(), want)
	}

	if err := WriteCSV(&bytes.Buffer{}, nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty export err = %v", err)
	}
}

func TestFilenames(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	if got := CSVFilename(now); got != "Presensi_SAS_2024-06-10.csv" {
		t.Errorf("CSVFilename = %q", got)
	}
	if got := ReportFilename(now); !strings.HasPrefix(got, "Laporan_Presensi_SAS_") || !strings.HasSuffix(got, ".xlsx") {
		t.Errorf("ReportFilename = %q", got)
	}
}

func TestReport(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, wib)
	records := []model.AttendanceRecord{rec("Budi", "4", "Rombel 4A", "IPA")}

	all, err := Report(records, model.AttendanceFilter{}, now)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if all.Subtitles[0] != "Tanggal Cetak: 10/6/2024, 09.00.00" {
		t.Errorf("print date = %q", all.Subtitles[0])
	}
	if all.Subtitles[1] != "Filter: Semua Data" {
		t.Errorf("subtitle = %q", all.Subtitles[1])
	}
	if len(all.Header) != 6 || len(all.Rows) != 1 || all.Rows[0][1] != "Budi" {
		t.Errorf("table = %+v", all)
	}

	filtered, _ := Report(records, model.AttendanceFilter{Grade: "4", Subject: "IPA"}, now)
	if filtered.Subtitles[1] != "Filter: Kelas: 4, Mapel: IPA" {
		t.Errorf("subtitle = %q", filtered.Subtitles[1])
	}

	if _, err := Report(nil, model.AttendanceFilter{}, now); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty report err = %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, wib)
	if err := WriteReport(&buf, []model.AttendanceRecord{rec("Budi", "4", "Rombel 4A", "IPA")}, model.AttendanceFilter{}, now); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	title, _ := f.GetCellValue("Presensi", "A1")
	if title != "Laporan Presensi Ujian SAS" {
		t.Errorf("title = %q", title)
	}
}
