package gate

import (
	"fmt"
	"time"
)

var weekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// LongDate formats the date part of t, e.g. "Senin, 10 Juni 2024".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

// Describe formats t the way the school announces exam times,
// e.g. "Senin, 10 Juni 2024, Pukul 08:00 WIB".
func Describe(t time.Time) string {
	return fmt.Sprintf("%s, Pukul %s %s", LongDate(t), t.Format("15:04"), t.Format("MST"))
}
