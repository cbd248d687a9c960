// Package catalog holds the static grades, sections and subjects offered by the portal.
package catalog

import (
	"github.com/sdceria/portal/internal/model"
)

var sections = map[model.GradeLevel][]model.Section{
	model.Grade4: {
		{ID: "A", Name: "Rombel 4A"},
		{ID: "B", Name: "Rombel 4B"},
		{ID: "C", Name: "Rombel 4C"},
	},
	model.Grade5: {
		{ID: "A", Name: "Rombel 5A"},
		{ID: "B", Name: "Rombel 5B"},
	},
	model.Grade6: {
		{ID: "A", Name: "Rombel 6A"},
		{ID: "B", Name: "Rombel 6B"},
	},
}

var subjects = []model.Subject{
	{ID: "indo", Name: "Bahasa Indonesia", Icon: "📖", Color: "bg-red-200"},
	{ID: "math", Name: "Matematika", Icon: "📐", Color: "bg-blue-200"},
	{ID: "ipa", Name: "IPA", Icon: "🔬", Color: "bg-green-200"},
	{ID: "ips", Name: "IPS", Icon: "🌍", Color: "bg-orange-200"},
	{ID: "ppkn", Name: "PPKn", Icon: "🇮🇩", Color: "bg-yellow-200"},
	{ID: "eng", Name: "Bahasa Inggris", Icon: "🅰️", Color: "bg-purple-200"},
	{ID: "pjok", Name: "PJOK", Icon: "⚽", Color: "bg-teal-200"},
	{ID: "seni", Name: "Seni Budaya", Icon: "🎨", Color: "bg-pink-200"},
	{ID: "agama", Name: "Agama", Icon: "🙏", Color: "bg-indigo-200"},
	{ID: "info", Name: "Informatika", Icon: "💻", Color: "bg-slate-200"},
}

// DefaultLinks seeds the link table. Key format is "{grade}-{sectionID}-{subjectID}".
var DefaultLinks = map[string]string{
	"default":  "https://docs.google.com/forms",
	"4-A-math": "https://docs.google.com/forms/d/e/example_math_4a/viewform",
	"6-B-ipa":  "https://docs.google.com/forms/d/e/example_ipa_6b/viewform",
}

// DefaultExamType is preselected on the attendance form.
const DefaultExamType = "Sumatif Akhir Semester (SAS)"

// ExamTypes lists the choices on the attendance form.
var ExamTypes = []string{
	DefaultExamType,
	"Sumatif Tengah Semester (STS)",
	"Ujian Susulan",
}

// Info returns the portal texts.
func Info() model.AppInfo {
	return model.AppInfo{
		Title:      "Portal Ujian Sumatif Akhir Semester",
		Welcome:    "Selamat Datang Siswa-Siswi Hebat!",
		Motivation: "Kerjakan dengan jujur dan teliti. Kamu pasti bisa!",
		Copyright:  "© 2024 SD Ceria - Tim Kurikulum",
	}
}

// Grades returns the grades in ascending order.
func Grades() []model.GradeLevel {
	return []model.GradeLevel{model.Grade4, model.Grade5, model.Grade6}
}

// ParseGrade returns the grade for s, or false if s is not a grade.
func ParseGrade(s string) (model.GradeLevel, bool) {
	g := model.GradeLevel(s)
	return g, g.Valid()
}

// Sections returns the sections of grade g.
func Sections(g model.GradeLevel) []model.Section {
	return append([]model.Section(nil), sections[g]...)
}

// Section looks up a section of grade g by id.
func Section(g model.GradeLevel, id string) (model.Section, bool) {
	for _, s := range sections[g] {
		if s.ID == id {
			return s, true
		}
	}
	return model.Section{}, false
}

// Subjects returns every subject in display order.
func Subjects() []model.Subject {
	return append([]model.Subject(nil), subjects...)
}

// Subject looks up a subject by id.
func Subject(id string) (model.Subject, bool) {
	for _, s := range subjects {
		if s.ID == id {
			return s, true
		}
	}
	return model.Subject{}, false
}

// SectionIDs returns the union of section ids across all grades, in order of first appearance.
func SectionIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, g := range Grades() {
		for _, s := range sections[g] {
			if !seen[s.ID] {
				seen[s.ID] = true
				ids = append(ids, s.ID)
			}
		}
	}
	return ids
}
