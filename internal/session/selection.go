package session

import (
	"strings"
	"sync"

	"clinedit-collab/internal/entity"
)

// SelectionTracker observes text selections in one document view and keeps
// the latest non-empty selection until it is explicitly dismissed or consumed
// by a submitted comment. One tracker per mounted view; the host registers
// its listeners on mount and calls Close on unmount.
type SelectionTracker struct {
	mu sync.Mutex

	current    *entity.Selection
	affordance bool
	panelOpen  bool

	onPublish func(entity.Selection)
}

func NewSelectionTracker(onPublish func(entity.Selection)) *SelectionTracker {
	return &SelectionTracker{onPublish: onPublish}
}

// OnSelectionChange captures a selection event from the host environment.
// An empty (or whitespace-only) result is a no-op: the prior selection
// persists so a follow-up click on a comment control does not lose it.
func (t *SelectionTracker) OnSelectionChange(text string, pos entity.AnchorPosition) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	sel := entity.Selection{Text: trimmed, AnchorPosition: pos}

	t.mu.Lock()
	t.current = &sel
	t.affordance = true
	publish := t.onPublish
	t.mu.Unlock()

	if publish != nil {
		publish(sel)
	}
}

// OnOutsideInteraction handles a pointer event anywhere in the view.
// The selection is cleared only when the target is outside every comment-UI
// region, no compose panel is open and no affordance is showing. Clicking
// the compose box therefore never destroys the selection it annotates.
func (t *SelectionTracker) OnOutsideInteraction(insideCommentUI bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if insideCommentUI || t.panelOpen || t.affordance {
		return
	}
	t.current = nil
}

// SetPanelOpen tracks the compose-panel visibility. Opening the panel hides
// the floating affordance; the selection stays live either way.
func (t *SelectionTracker) SetPanelOpen(open bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panelOpen = open
	if open {
		t.affordance = false
	}
}

func (t *SelectionTracker) PanelOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panelOpen
}

func (t *SelectionTracker) AffordanceVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.affordance
}

// Current returns a copy of the captured selection, or nil.
func (t *SelectionTracker) Current() *entity.Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	sel := *t.current
	return &sel
}

// Consume returns the captured selection and clears it, hiding the
// affordance. Called after a comment referencing it was sent.
func (t *SelectionTracker) Consume() *entity.Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	sel := t.current
	t.current = nil
	t.affordance = false
	t.panelOpen = false
	return sel
}

// Dismiss clears everything regardless of UI state (explicit cancel).
func (t *SelectionTracker) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.affordance = false
	t.panelOpen = false
}

// Close deregisters the publish callback so a retained tracker cannot call
// back into an unmounted view.
func (t *SelectionTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPublish = nil
}
