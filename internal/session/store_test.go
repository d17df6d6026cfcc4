package session

import (
	"testing"
	"time"

	"clinedit-collab/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openComment(id, content string) *entity.Comment {
	return &entity.Comment{
		Id:        id,
		UserId:    "u1",
		UserName:  "Dana",
		Content:   content,
		Status:    entity.CommentStatusOpen,
		CreatedAt: time.Now(),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := NewCommentStore()
	c := openComment("c1", "Needs citation")

	require.NoError(t, s.Upsert(c))
	once := s.List()

	require.NoError(t, s.Upsert(c))
	twice := s.List()

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, s.Len())
}

func TestUpsertNeverDuplicatesIds(t *testing.T) {
	s := NewCommentStore()
	require.NoError(t, s.Upsert(openComment("c1", "first")))
	require.NoError(t, s.Upsert(openComment("c2", "second")))
	require.NoError(t, s.Upsert(openComment("c1", "first, edited")))

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "first, edited", got.Content)

	// Insertion order is preserved across replacement.
	list := s.List()
	assert.Equal(t, "c1", list[0].Id)
	assert.Equal(t, "c2", list[1].Id)
}

func TestUpsertRejectsMalformedComment(t *testing.T) {
	s := NewCommentStore()
	assert.ErrorIs(t, s.Upsert(nil), ErrMalformedComment)
	assert.ErrorIs(t, s.Upsert(&entity.Comment{Id: "c1"}), ErrMalformedComment)
	assert.ErrorIs(t, s.Upsert(&entity.Comment{Content: "no id", Status: entity.CommentStatusOpen}), ErrMalformedComment)
}

func TestRepliesAreAppendOnly(t *testing.T) {
	s := NewCommentStore()

	c := openComment("c1", "thread root")
	c.Replies = []entity.Reply{{Id: "r1", Content: "first"}, {Id: "r2", Content: "second"}}
	require.NoError(t, s.Upsert(c))

	// An out-of-order update missing r2 must not drop it.
	stale := openComment("c1", "thread root")
	stale.Replies = []entity.Reply{{Id: "r1", Content: "first"}, {Id: "r3", Content: "third"}}
	require.NoError(t, s.Upsert(stale))

	got, ok := s.Get("c1")
	require.True(t, ok)
	require.Len(t, got.Replies, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, []string{got.Replies[0].Id, got.Replies[1].Id, got.Replies[2].Id})
}

func TestResolveIsOneWay(t *testing.T) {
	s := NewCommentStore()

	resolved := openComment("c1", "done deal")
	resolved.Status = entity.CommentStatusResolved
	require.NoError(t, s.Upsert(resolved))

	// A late echo claiming open must not revert the status.
	require.NoError(t, s.Upsert(openComment("c1", "done deal")))

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, entity.CommentStatusResolved, got.Status)
}

func TestReplaceAllInstallsSnapshot(t *testing.T) {
	s := NewCommentStore()
	require.NoError(t, s.Upsert(openComment("old", "stale")))

	s.ReplaceAll([]*entity.Comment{
		openComment("c1", "one"),
		openComment("c2", "two"),
		openComment("c1", "duplicate id in snapshot"),
	})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)
	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "one", got.Content, "first snapshot entry wins")
}

func TestPendingDraftPromotedByClientRef(t *testing.T) {
	s := NewCommentStore()

	draft := &entity.Comment{
		ClientRef: "ref-1",
		UserId:    "u1",
		Content:   "optimistic",
		Status:    entity.CommentStatusOpen,
	}
	require.NoError(t, s.AppendPending(draft))
	assert.Equal(t, 1, s.PendingCount())

	list := s.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Pending)

	// Server echo with the same ref retires the draft; no duplicate entry.
	echo := openComment("c1", "optimistic")
	echo.ClientRef = "ref-1"
	require.NoError(t, s.Upsert(echo))

	assert.Equal(t, 0, s.PendingCount())
	list = s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].Id)
	assert.False(t, list[0].Pending)
}

func TestUnrelatedEchoKeepsPendingDraft(t *testing.T) {
	s := NewCommentStore()

	require.NoError(t, s.AppendPending(&entity.Comment{
		ClientRef: "ref-1",
		Content:   "mine",
		Status:    entity.CommentStatusOpen,
	}))

	other := openComment("c9", "someone else's comment")
	other.ClientRef = "ref-other"
	require.NoError(t, s.Upsert(other))

	assert.Equal(t, 1, s.PendingCount(), "a foreign echo must not discard the local draft")
	assert.Equal(t, 1, s.Len())
}

func TestDropPending(t *testing.T) {
	s := NewCommentStore()
	require.NoError(t, s.AppendPending(&entity.Comment{
		ClientRef: "ref-1",
		Content:   "never sent",
		Status:    entity.CommentStatusOpen,
	}))
	s.DropPending("ref-1")
	assert.Equal(t, 0, s.PendingCount())
	s.DropPending("ref-1") // no-op
}

func TestListReturnsCopies(t *testing.T) {
	s := NewCommentStore()
	c := openComment("c1", "original")
	c.Replies = []entity.Reply{{Id: "r1", Content: "reply"}}
	require.NoError(t, s.Upsert(c))

	list := s.List()
	list[0].Content = "mutated"
	list[0].Replies[0].Content = "mutated reply"

	got, _ := s.Get("c1")
	assert.Equal(t, "original", got.Content)
	assert.Equal(t, "reply", got.Replies[0].Content)
}
