package attendance

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdceria/portal/internal/model"
	"github.com/sdceria/portal/internal/report"
)

var csvHeader = []string{"Waktu", "Nama", "NISN", "Kelas", "Rombel", "Mapel", "Jenis Ujian"}

var reportHeader = []string{"Waktu", "Nama", "NISN", "Kelas", "Rombel", "Mapel"}

// WriteCSV writes records as comma-separated text with a header row. Every field is
// quoted; quotes inside a field are doubled.
func WriteCSV(w io.Writer, records []model.AttendanceRecord) error {
	if len(records) == 0 {
		return ErrEmpty
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ","))
	for _, r := range records {
		bw.WriteByte('\n')
		fields := []string{r.Timestamp, r.Name, r.NISN, r.Grade, r.Rombel, r.Subject, r.ExamType}
		for i, f := range fields {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quote(f))
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSVFilename is the download name for a CSV export made at now.
func CSVFilename(now time.Time) string {
	return "Presensi_SAS_" + now.Format("2006-01-02") + ".csv"
}

// ReportFilename is the download name for a report export made at now.
func ReportFilename(now time.Time) string {
	return fmt.Sprintf("Laporan_Presensi_SAS_%d.xlsx", now.UnixMilli())
}

// Report builds the printable report for records, noting the filter that produced them.
// The print date is now's wall clock, so now must already be in the portal's zone.
func Report(records []model.AttendanceRecord, f model.AttendanceFilter, now time.Time) (report.Table, error) {
	if len(records) == 0 {
		return report.Table{}, ErrEmpty
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Timestamp, r.Name, r.NISN, r.Grade, r.Rombel, r.Subject})
	}
	return report.Table{
		Sheet: "Presensi",
		Title: "Laporan Presensi Ujian SAS",
		Subtitles: []string{
			"Tanggal Cetak: " + FormatTimestamp(now),
			filterText(f),
		},
		Header: reportHeader,
		Rows:   rows,
	}, nil
}

// WriteReport renders the report for records to w.
func WriteReport(w io.Writer, records []model.AttendanceRecord, f model.AttendanceFilter, now time.Time) error {
	t, err := Report(records, f, now)
	if err != nil {
		return err
	}
	return report.Write(w, t)
}

func filterText(f model.AttendanceFilter) string {
	if f.IsZero() {
		return "Filter: Semua Data"
	}
	var parts []string
	if f.Grade != "" {
		parts = append(parts, "Kelas: "+f.Grade)
	}
	if f.Rombel != "" {
		parts = append(parts, "Rombel: "+f.Rombel)
	}
	if f.Subject != "" {
		parts = append(parts, "Mapel: "+f.Subject)
	}
	return "Filter: " + strings.Join(parts, ", ")
}
