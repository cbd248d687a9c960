package links

import (
	"context"
	"errors"
	"testing"

	"github.com/sdceria/portal/internal/store"
)

func newTestTable(t *testing.T, seeds map[string]string) (*Table, *store.Adapter) {
	t.Helper()
	a := store.NewAdapter(store.NewMemory(0), nil)
	return NewTable(context.Background(), a, seeds), a
}

func TestSaveAndResolve(t *testing.T) {
	tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0"})
	ctx := context.Background()

	if got := tbl.Resolve("5", "A", "ipa"); got != "U0" {
		t.Fatalf("Resolve before save = %q, want U0", got)
	}

	key, err := tbl.Save(ctx, "5", "A", "ipa", "U1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "5-A-ipa" {
		t.Errorf("key = %q", key)
	}

	tests := []struct {
		grade, section, subject string
		want                    string
	}{
		{"5", "A", "ipa", "U1"},
		{"5", "B", "ipa", "U0"},
		{"4", "A", "ipa", "U0"},
		{"5", "A", "math", "U0"},
	}
	for _, tt := range tests {
		if got := tbl.Resolve(tt.grade, tt.section, tt.subject); got != tt.want {
			t.Errorf("Resolve(%s,%s,%s) = %q, want %q", tt.grade, tt.section, tt.subject, got, tt.want)
		}
	}
}

func TestSaveDefault(t *testing.T) {
	tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0"})
	key, err := tbl.Save(context.Background(), "", "", "", " U9 ")
	if err != nil {
		t.Fatalf("Save default: %v", err)
	}
	if key != DefaultKey {
		t.Errorf("key = %q", key)
	}
	if got := tbl.Resolve("6", "B", "eng"); got != "U9" {
		t.Errorf("Resolve = %q, want U9", got)
	}
}

func TestSaveRejectsPartialKey(t *testing.T) {
	tests := []struct {
		name                    string
		grade, section, subject string
		want                    error
	}{
		{"grade only", "4", "", "", ErrPartialKey},
		{"grade and section", "4", "A", "", ErrPartialKey},
		{"subject only", "", "", "math", ErrPartialKey},
		{"section and subject", "", "A", "math", ErrPartialKey},
		{"blank subject", "4", "A", " ", ErrPartialKey},
		{"unknown grade", "9", "A", "math", ErrUnknownSelection},
		{"section not in grade", "5", "C", "math", ErrUnknownSelection},
		{"unknown subject", "4", "A", "nosuch", ErrUnknownSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0"})
			_, err := tbl.Save(context.Background(), tt.grade, tt.section, tt.subject, "U1")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(tbl.Entries()) != 1 || tbl.Default() != "U0" {
				t.Errorf("table mutated: %+v", tbl.Entries())
			}
		})
	}
}

func TestSaveTrimsIDs(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0"})

	key, err := tbl.Save(ctx, " 5", "A ", " ipa ", "U1")
	if err != nil || key != "5-A-ipa" {
		t.Fatalf("Save = %q, %v", key, err)
	}
	if got := tbl.Resolve("5", "A", "ipa"); got != "U1" {
		t.Errorf("Resolve = %q, want U1", got)
	}

	key, err = tbl.Save(ctx, " ", " ", " ", "U8")
	if err != nil || key != DefaultKey {
		t.Fatalf("blank ids: Save = %q, %v", key, err)
	}
	if len(tbl.Entries()) != 2 || tbl.Default() != "U8" {
		t.Errorf("entries = %+v", tbl.Entries())
	}
}

func TestSaveRejectsEmptyURL(t *testing.T) {
	tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0"})
	if _, err := tbl.Save(context.Background(), "", "", "", "  "); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("err = %v, want ErrEmptyURL", err)
	}
}

func TestDelete(t *testing.T) {
	tbl, _ := newTestTable(t, map[string]string{DefaultKey: "U0", "4-A-math": "U1"})
	ctx := context.Background()

	if err := tbl.Delete(ctx, DefaultKey); !errors.Is(err, ErrDefaultKey) {
		t.Errorf("Delete(default) err = %v", err)
	}
	if tbl.Default() != "U0" {
		t.Error("default entry must survive")
	}
	if err := tbl.Delete(ctx, "9-Z-none"); err != nil {
		t.Errorf("Delete unknown key: %v", err)
	}
	if len(tbl.Entries()) != 2 {
		t.Error("deleting an unknown key must be a no-op")
	}
	if err := tbl.Delete(ctx, "4-A-math"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := tbl.Resolve("4", "A", "math"); got != "U0" {
		t.Errorf("after delete Resolve = %q, want default", got)
	}
}

func TestStoredEntriesOverrideSeeds(t *testing.T) {
	tbl, a := newTestTable(t, map[string]string{DefaultKey: "seed"})
	ctx := context.Background()
	_, _ = tbl.Save(ctx, "", "", "", "stored")
	_, _ = tbl.Save(ctx, "6", "B", "ipa", "U6")

	reloaded := NewTable(ctx, a, map[string]string{DefaultKey: "seed", "4-A-math": "seed-math"})
	if reloaded.Default() != "stored" {
		t.Errorf("Default = %q, want stored value", reloaded.Default())
	}
	if got := reloaded.Resolve("4", "A", "math"); got != "seed-math" {
		t.Errorf("seed not merged: %q", got)
	}
	if got := reloaded.Resolve("6", "B", "ipa"); got != "U6" {
		t.Errorf("stored key lost: %q", got)
	}
}

func TestEntriesDefaultFirst(t *testing.T) {
	tbl, _ := newTestTable(t, map[string]string{"6-B-ipa": "b", DefaultKey: "U0", "4-A-math": "a"})
	entries := tbl.Entries()
	if !entries[0].IsDefault() {
		t.Fatalf("first entry = %q", entries[0].Key)
	}
	if entries[1].Key != "4-A-math" || entries[2].Key != "6-B-ipa" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestMissingDefault(t *testing.T) {
	tbl, _ := newTestTable(t, nil)
	if got := tbl.Resolve("4", "A", "math"); got != "" {
		t.Errorf("Resolve = %q, want empty placeholder", got)
	}
	if len(tbl.Entries()) != 1 {
		t.Error("default entry should be created")
	}
}
