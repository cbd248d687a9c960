package catalog

import (
	"testing"

	"github.com/sdceria/portal/internal/model"
)

func TestSections(t *testing.T) {
	tests := []struct {
		grade model.GradeLevel
		want  int
	}{
		{model.Grade4, 3},
		{model.Grade5, 2},
		{model.Grade6, 2},
		{model.GradeLevel("7"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.grade), func(t *testing.T) {
			if got := len(Sections(tt.grade)); got != tt.want {
				t.Errorf("Sections(%s) = %d, want %d", tt.grade, got, tt.want)
			}
		})
	}

	s, ok := Section(model.Grade4, "C")
	if !ok || s.Name != "Rombel 4C" {
		t.Errorf("Section(4, C) = %+v, %v", s, ok)
	}
	if _, ok := Section(model.Grade5, "C"); ok {
		t.Error("grade 5 has no section C")
	}
}

func TestSectionsReturnsCopy(t *testing.T) {
	got := Sections(model.Grade4)
	got[0].Name = "changed"
	if s, _ := Section(model.Grade4, "A"); s.Name != "Rombel 4A" {
		t.Errorf("catalog mutated through Sections: %q", s.Name)
	}
}

func TestSubject(t *testing.T) {
	if len(Subjects()) != 10 {
		t.Fatalf("expected 10 subjects, got %d", len(Subjects()))
	}
	s, ok := Subject("ipa")
	if !ok || s.Name != "IPA" {
		t.Errorf("Subject(ipa) = %+v, %v", s, ok)
	}
	if _, ok := Subject("chem"); ok {
		t.Error("unexpected subject chem")
	}
}

func TestParseGrade(t *testing.T) {
	if g, ok := ParseGrade("5"); !ok || g != model.Grade5 {
		t.Errorf("ParseGrade(5) = %q, %v", g, ok)
	}
	if _, ok := ParseGrade("ALL"); ok {
		t.Error("ALL is not a grade")
	}
}

func TestSectionIDs(t *testing.T) {
	got := SectionIDs()
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("SectionIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SectionIDs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultLinksHaveDefault(t *testing.T) {
	if DefaultLinks["default"] == "" {
		t.Error("default link missing")
	}
}
