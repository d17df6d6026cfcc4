package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	state   ConnState
	sent    []interface{}
	sendErr error
}

func (f *fakeTransport) Open(ctx context.Context, documentId, shareToken string, identity entity.Identity) error {
	f.state = StateReady
	return nil
}

func (f *fakeTransport) Send(v interface{}) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeTransport) Close(reason string) error {
	f.state = StateDisconnected
	return nil
}

func (f *fakeTransport) State() ConnState { return f.state }

func newTestController(conn Transport) (*Controller, *CommentStore, *SelectionTracker) {
	store := NewCommentStore()
	tracker := NewSelectionTracker(nil)
	identity := entity.Identity{UserId: "u1", UserName: "Dana", DisplayName: "Dana"}
	ctrl := NewController(conn, store, tracker, identity, "doc-1", "share-1", nil)
	return ctrl, store, tracker
}

func frame(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func commentDTO(id, content string) dto.CommentDTO {
	return dto.CommentDTO{
		Id:        id,
		UserId:    "u2",
		UserName:  "Riley",
		Content:   content,
		Status:    "open",
		CreatedAt: time.Now(),
		Replies:   []dto.ReplyDTO{},
	}
}

func TestSnapshotPopulatesStore(t *testing.T) {
	ctrl, store, _ := newTestController(&fakeTransport{state: StateReady})

	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{
		Type:     dto.TypeExistingComments,
		Comments: []dto.CommentDTO{commentDTO("c1", "one"), commentDTO("c2", "two")},
	}))

	assert.Equal(t, 2, store.Len())
}

func TestEventsBeforeSnapshotAreDeferred(t *testing.T) {
	ctrl, store, _ := newTestController(&fakeTransport{state: StateReady})

	ctrl.HandleFrame(frame(t, dto.CommentEventMessage{
		Type:    dto.TypeNewComment,
		Comment: commentDTO("c-early", "arrived before snapshot"),
	}))
	assert.Zero(t, store.Len(), "mutation before the snapshot must not apply")

	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{
		Type:     dto.TypeExistingComments,
		Comments: []dto.CommentDTO{commentDTO("c1", "snapshot entry")},
	}))

	// The held-back event replays after the snapshot.
	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("c-early")
	assert.True(t, ok)
}

func TestNewCommentEchoIsDeduplicated(t *testing.T) {
	ctrl, store, _ := newTestController(&fakeTransport{state: StateReady})
	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{Type: dto.TypeExistingComments}))

	event := dto.CommentEventMessage{Type: dto.TypeNewComment, Comment: commentDTO("c1", "Needs citation")}
	ctrl.HandleFrame(frame(t, event))
	ctrl.HandleFrame(frame(t, event))

	assert.Equal(t, 1, store.Len())
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	ctrl, store, _ := newTestController(&fakeTransport{state: StateReady})
	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{Type: dto.TypeExistingComments}))

	ctrl.HandleFrame([]byte(`{"type":"presence_update","users":["u1"]}`))
	ctrl.HandleFrame([]byte(`not json at all`))
	ctrl.HandleFrame([]byte(`{"type":"new_comment","comment":{"content":"missing id"}}`))

	assert.Zero(t, store.Len())
}

func TestSubmitCommentSendsAndConsumesSelection(t *testing.T) {
	conn := &fakeTransport{state: StateReady}
	ctrl, store, tracker := newTestController(conn)

	tracker.OnSelectionChange("prior studies", entity.AnchorPosition{Top: 1, Left: 2, Right: 3})

	require.NoError(t, ctrl.SubmitComment("Needs citation"))

	require.Len(t, conn.sent, 1)
	msg, ok := conn.sent[0].(dto.NewCommentMessage)
	require.True(t, ok)
	assert.Equal(t, dto.TypeNewComment, msg.Type)
	assert.Equal(t, "Needs citation", msg.Content)
	assert.Equal(t, "prior studies", msg.SelectionText)
	assert.NotEmpty(t, msg.ClientRef)
	require.NotNil(t, msg.Position)
	assert.Equal(t, 1.0, msg.Position.Top)

	// Selection consumed only after the successful send; draft is pending.
	assert.Nil(t, tracker.Current())
	assert.Equal(t, 1, store.PendingCount())
}

func TestPendingDraftPromotedByEcho(t *testing.T) {
	conn := &fakeTransport{state: StateReady}
	ctrl, store, _ := newTestController(conn)
	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{Type: dto.TypeExistingComments}))

	require.NoError(t, ctrl.SubmitComment("optimistic"))
	msg := conn.sent[0].(dto.NewCommentMessage)

	echo := commentDTO("c1", "optimistic")
	echo.ClientRef = msg.ClientRef
	ctrl.HandleFrame(frame(t, dto.CommentEventMessage{Type: dto.TypeNewComment, Comment: echo}))

	assert.Zero(t, store.PendingCount())
	assert.Equal(t, 1, store.Len())
}

func TestSubmitCommentValidation(t *testing.T) {
	ctrl, store, _ := newTestController(&fakeTransport{state: StateReady})

	assert.ErrorIs(t, ctrl.SubmitComment(""), ErrEmptyContent)
	assert.ErrorIs(t, ctrl.SubmitComment("   \n\t"), ErrEmptyContent)
	assert.Zero(t, store.PendingCount())
}

func TestSubmitCommentWhileNotReadyPreservesState(t *testing.T) {
	conn := &fakeTransport{state: StateConnecting, sendErr: ErrNotReady}
	ctrl, store, tracker := newTestController(conn)

	tracker.OnSelectionChange("keep this", entity.AnchorPosition{})

	err := ctrl.SubmitComment("composed text")
	assert.ErrorIs(t, err, ErrNotReady)

	// Nothing sent, nothing pending, selection untouched: the user retries
	// without retyping.
	assert.Empty(t, conn.sent)
	assert.Zero(t, store.PendingCount())
	require.NotNil(t, tracker.Current())
	assert.Equal(t, "keep this", tracker.Current().Text)
}

func TestSubmitReply(t *testing.T) {
	conn := &fakeTransport{state: StateReady}
	ctrl, store, _ := newTestController(conn)
	require.NoError(t, store.Upsert(&entity.Comment{Id: "c1", Content: "root", Status: entity.CommentStatusOpen}))

	assert.ErrorIs(t, ctrl.SubmitReply("c1", "  "), ErrEmptyContent)
	assert.ErrorIs(t, ctrl.SubmitReply("missing", "hello"), ErrUnknownComment)

	require.NoError(t, ctrl.SubmitReply("c1", "agreed"))
	require.Len(t, conn.sent, 1)
	msg := conn.sent[0].(dto.NewReplyMessage)
	assert.Equal(t, "c1", msg.CommentId)
	assert.Equal(t, "agreed", msg.Content)
}

func TestResolveComment(t *testing.T) {
	conn := &fakeTransport{state: StateReady}
	ctrl, store, _ := newTestController(conn)
	require.NoError(t, store.Upsert(&entity.Comment{Id: "c1", Content: "root", Status: entity.CommentStatusOpen}))

	assert.ErrorIs(t, ctrl.ResolveComment("missing"), ErrUnknownComment)

	require.NoError(t, ctrl.ResolveComment("c1"))
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "c1", conn.sent[0].(dto.ResolveCommentMessage).CommentId)

	// No optimistic flip: status changes only on the server echo.
	got, _ := store.Get("c1")
	assert.Equal(t, entity.CommentStatusOpen, got.Status)

	resolved := commentDTO("c1", "root")
	resolved.Status = "resolved"
	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{Type: dto.TypeExistingComments, Comments: []dto.CommentDTO{commentDTO("c1", "root")}}))
	ctrl.HandleFrame(frame(t, dto.CommentEventMessage{Type: dto.TypeCommentResolved, Comment: resolved}))

	got, _ = store.Get("c1")
	assert.Equal(t, entity.CommentStatusResolved, got.Status)

	// Resolving an already resolved comment is rejected locally.
	assert.ErrorIs(t, ctrl.ResolveComment("c1"), ErrNotOpen)
}

func TestOnUpdateFires(t *testing.T) {
	ctrl, _, _ := newTestController(&fakeTransport{state: StateReady})
	updates := 0
	ctrl.OnUpdate = func() { updates++ }

	ctrl.HandleFrame(frame(t, dto.ExistingCommentsMessage{Type: dto.TypeExistingComments}))
	ctrl.HandleFrame(frame(t, dto.CommentEventMessage{Type: dto.TypeNewComment, Comment: commentDTO("c1", "hi")}))

	assert.Equal(t, 2, updates)
}
