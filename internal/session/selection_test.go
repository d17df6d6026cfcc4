package session

import (
	"testing"

	"clinedit-collab/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionCapturesTrimmedText(t *testing.T) {
	var published []entity.Selection
	tr := NewSelectionTracker(func(s entity.Selection) { published = append(published, s) })

	tr.OnSelectionChange("  prior studies \n", entity.AnchorPosition{Top: 10, Left: 20, Right: 120})

	sel := tr.Current()
	require.NotNil(t, sel)
	assert.Equal(t, "prior studies", sel.Text)
	assert.True(t, tr.AffordanceVisible())
	require.Len(t, published, 1)
	assert.Equal(t, "prior studies", published[0].Text)
}

func TestEmptySelectionDoesNotClearPrior(t *testing.T) {
	tr := NewSelectionTracker(nil)
	tr.OnSelectionChange("keep me", entity.AnchorPosition{})

	// The user clicking a toolbar button collapses the browser selection;
	// the captured one must survive that.
	tr.OnSelectionChange("", entity.AnchorPosition{})
	tr.OnSelectionChange("   ", entity.AnchorPosition{})

	sel := tr.Current()
	require.NotNil(t, sel)
	assert.Equal(t, "keep me", sel.Text)
}

func TestClickInsideCommentUIKeepsSelection(t *testing.T) {
	tr := NewSelectionTracker(nil)
	tr.OnSelectionChange("annotate this", entity.AnchorPosition{})

	tr.OnOutsideInteraction(true)

	sel := tr.Current()
	require.NotNil(t, sel)
	assert.Equal(t, "annotate this", sel.Text)
}

func TestOutsideClickNeverClearsWhileComposing(t *testing.T) {
	tr := NewSelectionTracker(nil)
	tr.OnSelectionChange("annotate this", entity.AnchorPosition{})
	tr.SetPanelOpen(true)

	tr.OnOutsideInteraction(false)

	require.NotNil(t, tr.Current(), "open compose panel must protect the selection")
}

func TestOutsideClickClearsStaleSelection(t *testing.T) {
	tr := NewSelectionTracker(nil)
	tr.OnSelectionChange("stale", entity.AnchorPosition{})
	tr.Consume() // selection used and cleared
	tr.OnSelectionChange("newer", entity.AnchorPosition{})
	tr.SetPanelOpen(true)
	tr.SetPanelOpen(false)

	// No panel, no affordance: the outside click dismisses.
	tr.OnOutsideInteraction(false)
	assert.Nil(t, tr.Current())
}

func TestConsumeReturnsAndClears(t *testing.T) {
	tr := NewSelectionTracker(nil)
	tr.OnSelectionChange("quoted text", entity.AnchorPosition{Top: 5})

	sel := tr.Consume()
	require.NotNil(t, sel)
	assert.Equal(t, "quoted text", sel.Text)
	assert.Nil(t, tr.Current())
	assert.False(t, tr.AffordanceVisible())
}

func TestCloseDeregistersCallback(t *testing.T) {
	calls := 0
	tr := NewSelectionTracker(func(entity.Selection) { calls++ })
	tr.Close()
	tr.OnSelectionChange("after unmount", entity.AnchorPosition{})
	assert.Zero(t, calls)
}
