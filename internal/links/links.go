// Package links maps grade/section/subject combinations to external exam form URLs.
package links

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sdceria/portal/internal/catalog"
	"github.com/sdceria/portal/internal/store"
)

// StorageKey is the durable key holding the serialized link table.
const StorageKey = "sas_exam_links"

// DefaultKey is the fallback entry, always present.
const DefaultKey = "default"

var (
	ErrPartialKey = errors.New("grade, section and subject must all be set, or all be empty")
	ErrEmptyURL   = errors.New("link URL is empty")
	ErrDefaultKey = errors.New("the default link cannot be deleted")

	ErrUnknownSelection = errors.New("grade, section or subject is not in the catalog")
)

// Key builds the composite key "{grade}-{sectionID}-{subjectID}".
func Key(grade, sectionID, subjectID string) string {
	return grade + "-" + sectionID + "-" + subjectID
}

// Entry is one row of the link table.
type Entry struct {
	Key string
	URL string
}

// IsDefault reports whether e is the fallback entry.
func (e Entry) IsDefault() bool { return e.Key == DefaultKey }

// Table resolves exam URLs. Stored entries are merged over the seeds on load.
type Table struct {
	mu    sync.Mutex
	store *store.Adapter
	links map[string]string
}

// NewTable loads the stored table on top of seeds. seeds should contain DefaultKey;
// if neither seeds nor storage provide it, the default is the empty string.
func NewTable(ctx context.Context, a *store.Adapter, seeds map[string]string) *Table {
	t := &Table{store: a, links: make(map[string]string, len(seeds))}
	for k, v := range seeds {
		t.links[k] = v
	}
	var stored map[string]string
	if store.LoadJSON(ctx, a, StorageKey, store.Durable, &stored) {
		for k, v := range stored {
			t.links[k] = v
		}
	}
	if _, ok := t.links[DefaultKey]; !ok {
		slog.Warn("link table has no default entry")
		t.links[DefaultKey] = ""
	}
	return t
}

// Resolve returns the URL for the combination, or the default URL when no specific
// entry exists.
func (t *Table) Resolve(grade, sectionID, subjectID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u, ok := t.links[Key(grade, sectionID, subjectID)]; ok {
		return u
	}
	return t.links[DefaultKey]
}

// Default returns the current default URL.
func (t *Table) Default() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.links[DefaultKey]
}

// Save stores url under the composite key when grade, section and subject are all
// given, or under the default key when all three are empty. It returns the key used.
// A specific combination must exist in the catalog.
func (t *Table) Save(ctx context.Context, grade, sectionID, subjectID, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}
	grade = strings.TrimSpace(grade)
	sectionID = strings.TrimSpace(sectionID)
	subjectID = strings.TrimSpace(subjectID)

	var key string
	switch {
	case grade != "" && sectionID != "" && subjectID != "":
		if !known(grade, sectionID, subjectID) {
			return "", ErrUnknownSelection
		}
		key = Key(grade, sectionID, subjectID)
	case grade == "" && sectionID == "" && subjectID == "":
		key = DefaultKey
	default:
		return "", ErrPartialKey
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.links[key] = url
	t.persist(ctx)
	slog.Info("saved exam link", "key", key)
	return key, nil
}

func known(grade, sectionID, subjectID string) bool {
	g, ok := catalog.ParseGrade(grade)
	if !ok {
		return false
	}
	if _, ok := catalog.Section(g, sectionID); !ok {
		return false
	}
	_, ok = catalog.Subject(subjectID)
	return ok
}

// Delete removes a specific entry. Deleting an unknown key is a no-op; the default
// entry cannot be deleted.
func (t *Table) Delete(ctx context.Context, key string) error {
	if key == DefaultKey {
		return ErrDefaultKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.links[key]; !ok {
		return nil
	}
	delete(t.links, key)
	t.persist(ctx)
	slog.Info("deleted exam link", "key", key)
	return nil
}

// Entries lists the table with the default entry first, then by key.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := make([]Entry, 0, len(t.links))
	for k, v := range t.links {
		entries = append(entries, Entry{Key: k, URL: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDefault() != entries[j].IsDefault() {
			return entries[i].IsDefault()
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (t *Table) persist(ctx context.Context) {
	_ = store.SaveJSON(ctx, t.store, StorageKey, store.Durable, t.links)
}
