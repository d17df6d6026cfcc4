package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"
	"clinedit-collab/internal/mapper"
	"clinedit-collab/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Transport is the connection surface the controller drives. Implemented by
// ConnectionManager; faked in tests.
type Transport interface {
	Open(ctx context.Context, documentId, shareToken string, identity entity.Identity) error
	Send(v interface{}) error
	Close(reason string) error
	State() ConnState
}

// Controller orchestrates one document's comment session: it translates
// user intent into outbound protocol messages and applies inbound messages
// to the store. It is the store's only writer.
type Controller struct {
	conn     Transport
	store    *CommentStore
	tracker  *SelectionTracker
	mapper   *mapper.CommentMapper
	validate *validator.Validate
	log      logger.ILogger

	identity   entity.Identity
	documentId string
	shareToken string

	// OnUpdate, when set, fires after every store mutation so the host view
	// can re-render. OnConnState mirrors connection state for indicators.
	OnUpdate    func()
	OnConnState func(ConnState)

	mu sync.Mutex
	// The existing_comments snapshot arrives exactly once per session after
	// ready; events sneaking in ahead of it are held back and replayed.
	snapshotSeen bool
	backlog      [][]byte
}

func NewController(conn Transport, store *CommentStore, tracker *SelectionTracker, identity entity.Identity, documentId, shareToken string, log logger.ILogger) *Controller {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Controller{
		conn:       conn,
		store:      store,
		tracker:    tracker,
		mapper:     mapper.NewCommentMapper(),
		validate:   validator.New(),
		log:        log,
		identity:   identity,
		documentId: documentId,
		shareToken: shareToken,
	}
	if cm, ok := conn.(*ConnectionManager); ok {
		cm.SetHandlers(c.HandleFrame, c.handleState)
	}
	return c
}

// Start opens the connection and completes the handshake. Blocking up to
// the configured open+auth timeouts times the retry schedule; cancel ctx to
// abort (view unmounted).
func (c *Controller) Start(ctx context.Context) error {
	return c.conn.Open(ctx, c.documentId, c.shareToken, c.identity)
}

// Reopen re-runs the full open sequence after a drop. Reconnection is a
// host decision, never automatic background behavior.
func (c *Controller) Reopen(ctx context.Context) error {
	c.mu.Lock()
	c.snapshotSeen = false
	c.backlog = nil
	c.mu.Unlock()
	return c.conn.Open(ctx, c.documentId, c.shareToken, c.identity)
}

// Stop tears the session down. Idempotent.
func (c *Controller) Stop() error {
	if c.tracker != nil {
		c.tracker.Close()
	}
	return c.conn.Close("document view closed")
}

func (c *Controller) ConnState() ConnState {
	return c.conn.State()
}

// Comments returns the renderable thread: confirmed comments in order, then
// pending drafts.
func (c *Controller) Comments() []entity.Comment {
	return c.store.List()
}

// HandleFrame applies one inbound protocol message. Messages arrive in
// delivery order from the connection's reader; unknown types and malformed
// payloads are logged and ignored, never fatal.
func (c *Controller) HandleFrame(raw []byte) {
	var env dto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("CommentSession", "Dropping malformed frame", map[string]interface{}{"error": err.Error()})
		return
	}

	switch env.Type {
	case dto.TypeExistingComments:
		c.applySnapshot(raw)

	case dto.TypeNewComment, dto.TypeNewReply, dto.TypeCommentResolved:
		c.mu.Lock()
		if !c.snapshotSeen {
			// Mutations ahead of the snapshot are invalid; hold them back.
			c.backlog = append(c.backlog, raw)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.applyCommentEvent(env.Type, raw)

	case dto.TypeAuthSuccess, dto.TypeAuthFailed:
		// Handshake frames are consumed by the connection manager; a
		// duplicate here is harmless.

	case dto.TypeError:
		var msg dto.ErrorMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			c.log.Warn("CommentSession", "Server error frame", map[string]interface{}{"message": msg.Message})
		}

	default:
		c.log.Warn("CommentSession", "Ignoring unknown message type", map[string]interface{}{"type": env.Type})
	}
}

func (c *Controller) applySnapshot(raw []byte) {
	var msg dto.ExistingCommentsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn("CommentSession", "Dropping malformed snapshot", map[string]interface{}{"error": err.Error()})
		return
	}

	comments := make([]*entity.Comment, 0, len(msg.Comments))
	for i := range msg.Comments {
		if err := c.validate.Struct(&msg.Comments[i]); err != nil {
			c.log.Warn("CommentSession", "Skipping invalid snapshot entry", map[string]interface{}{"error": err.Error()})
			continue
		}
		comments = append(comments, c.mapper.CommentToEntity(&msg.Comments[i]))
	}
	c.store.ReplaceAll(comments)

	c.mu.Lock()
	c.snapshotSeen = true
	backlog := c.backlog
	c.backlog = nil
	c.mu.Unlock()

	c.changed()

	for _, frame := range backlog {
		c.HandleFrame(frame)
	}
}

func (c *Controller) applyCommentEvent(msgType string, raw []byte) {
	var msg dto.CommentEventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn("CommentSession", "Dropping malformed comment event", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}
	if err := c.validate.Struct(&msg.Comment); err != nil {
		c.log.Warn("CommentSession", "Dropping invalid comment payload", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}

	if err := c.store.Upsert(c.mapper.CommentToEntity(&msg.Comment)); err != nil {
		c.log.Warn("CommentSession", "Store rejected comment", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}
	c.changed()
}

// SubmitComment sends a new comment annotating the current selection (if
// any). The selection is consumed only after the send call succeeds; on
// ErrNotReady the composed content and selection are both preserved so the
// user can retry without retyping.
func (c *Controller) SubmitComment(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyContent
	}

	var sel *entity.Selection
	if c.tracker != nil {
		sel = c.tracker.Current()
	}

	msg := dto.NewCommentMessage{
		Type:      dto.TypeNewComment,
		ClientRef: uuid.NewString(),
		Content:   trimmed,
	}
	if sel != nil {
		msg.SelectionText = sel.Text
		msg.Position = &dto.PositionDTO{
			Top:   sel.AnchorPosition.Top,
			Left:  sel.AnchorPosition.Left,
			Right: sel.AnchorPosition.Right,
		}
	}

	if err := c.conn.Send(msg); err != nil {
		return err
	}

	draft := &entity.Comment{
		ClientRef:     msg.ClientRef,
		UserId:        c.identity.UserId,
		UserName:      c.identity.UserName,
		Content:       trimmed,
		SelectionText: msg.SelectionText,
		Status:        entity.CommentStatusOpen,
		CreatedAt:     time.Now(),
	}
	if err := c.store.AppendPending(draft); err != nil {
		c.log.Warn("CommentSession", "Could not record pending draft", map[string]interface{}{"error": err.Error()})
	}

	if c.tracker != nil {
		c.tracker.Consume()
	}
	c.changed()
	return nil
}

// SubmitReply appends a reply to a comment already known to the store.
func (c *Controller) SubmitReply(commentId, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyContent
	}
	if _, ok := c.store.Get(commentId); !ok {
		return ErrUnknownComment
	}

	return c.conn.Send(dto.NewReplyMessage{
		Type:      dto.TypeNewReply,
		CommentId: commentId,
		Content:   trimmed,
	})
}

// ResolveComment requests the one-way open -> resolved transition. Status
// flips only when the server's comment_resolved echo arrives; resolve is
// idempotent server-side, so a duplicate click before the echo is harmless.
func (c *Controller) ResolveComment(commentId string) error {
	existing, ok := c.store.Get(commentId)
	if !ok {
		return ErrUnknownComment
	}
	if existing.IsResolved() {
		return ErrNotOpen
	}

	return c.conn.Send(dto.ResolveCommentMessage{
		Type:      dto.TypeResolveComment,
		CommentId: commentId,
	})
}

func (c *Controller) handleState(s ConnState) {
	if s == StateDisconnected {
		c.log.Info("CommentSession", "Connection state changed", map[string]interface{}{"state": string(s)})
	}
	if c.OnConnState != nil {
		c.OnConnState(s)
	}
}

func (c *Controller) changed() {
	if c.OnUpdate != nil {
		c.OnUpdate()
	}
}
