package wizard

import (
	"context"

	"github.com/sdceria/portal/internal/store"
)

// Session-scope keys mirroring the flow.
const (
	StateKey = "sas_student_session"
	DraftKey = "sas_student_form_draft"
)

// StoreObserver mirrors a flow into the session scope of a store adapter.
type StoreObserver struct {
	Store *store.Adapter
}

func (o StoreObserver) OnState(ctx context.Context, s State) {
	_ = store.SaveJSON(ctx, o.Store, StateKey, store.Session, s)
}

func (o StoreObserver) OnDraft(ctx context.Context, d Draft) {
	_ = store.SaveJSON(ctx, o.Store, DraftKey, store.Session, d)
}

func (o StoreObserver) OnDraftCleared(ctx context.Context) {
	_ = o.Store.Remove(ctx, DraftKey, store.Session)
}

func (o StoreObserver) OnReset(ctx context.Context) {
	_ = o.Store.Remove(ctx, StateKey, store.Session)
	_ = o.Store.Remove(ctx, DraftKey, store.Session)
}

// Restore rebuilds a flow from the session scope of a, mirroring further changes
// back into it. Absent or corrupt values start a fresh flow.
func Restore(ctx context.Context, a *store.Adapter, deps Deps) *Flow {
	var s State
	var d Draft
	store.LoadJSON(ctx, a, StateKey, store.Session, &s)
	store.LoadJSON(ctx, a, DraftKey, store.Session, &d)
	return Resume(deps, StoreObserver{Store: a}, s, d)
}
