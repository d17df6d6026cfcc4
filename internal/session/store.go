package session

import (
	"sync"

	"clinedit-collab/internal/entity"
)

// CommentStore is the single source of truth rendered by the UI: the
// deduplicated set of comments for one document view. The controller is the
// only writer; presentation layers read snapshots. All mutations are
// synchronous and total.
type CommentStore struct {
	mu sync.RWMutex

	byId  map[string]*entity.Comment
	order []string

	// Optimistic drafts keyed by client_ref, rendered after the confirmed
	// comments until the server echo promotes or drops them.
	pending      map[string]*entity.Comment
	pendingOrder []string
}

func NewCommentStore() *CommentStore {
	return &CommentStore{
		byId:    make(map[string]*entity.Comment),
		pending: make(map[string]*entity.Comment),
	}
}

// ReplaceAll installs the server's existing-comment snapshot, discarding all
// prior confirmed state. Pending drafts survive: they predate the snapshot
// and are still awaiting their echo.
func (s *CommentStore) ReplaceAll(comments []*entity.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byId = make(map[string]*entity.Comment, len(comments))
	s.order = s.order[:0]
	for _, c := range comments {
		if c == nil || c.Id == "" {
			continue
		}
		if _, dup := s.byId[c.Id]; dup {
			continue
		}
		stored := cloneComment(c)
		s.byId[c.Id] = stored
		s.order = append(s.order, c.Id)
	}
}

// Upsert inserts or wholesale-replaces the entry for comment.Id.
// Idempotent: applying the same comment twice yields the same state.
// Two invariants are enforced against out-of-order delivery: a resolved
// comment never reverts to open, and previously seen replies are never
// dropped or reordered. An echo carrying a client_ref also retires the
// matching pending draft.
func (s *CommentStore) Upsert(comment *entity.Comment) error {
	if comment == nil || comment.Id == "" || comment.Content == "" || comment.Status == "" {
		return ErrMalformedComment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := cloneComment(comment)
	incoming.Pending = false

	if existing, ok := s.byId[comment.Id]; ok {
		if existing.IsResolved() {
			incoming.Status = entity.CommentStatusResolved
		}
		incoming.Replies = mergeReplies(existing.Replies, incoming.Replies)
		s.byId[comment.Id] = incoming
	} else {
		s.byId[comment.Id] = incoming
		s.order = append(s.order, comment.Id)
	}

	if comment.ClientRef != "" {
		s.dropPendingLocked(comment.ClientRef)
	}
	return nil
}

// AppendPending records an optimistic draft keyed by its client_ref. The
// draft renders in a distinct pending state and is replaced exactly when
// the server echoes the same ref back.
func (s *CommentStore) AppendPending(draft *entity.Comment) error {
	if draft == nil || draft.ClientRef == "" || draft.Content == "" {
		return ErrMalformedComment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneComment(draft)
	stored.Pending = true
	if _, ok := s.pending[draft.ClientRef]; !ok {
		s.pendingOrder = append(s.pendingOrder, draft.ClientRef)
	}
	s.pending[draft.ClientRef] = stored
	return nil
}

// DropPending discards a draft without promotion (failed send, view reset).
func (s *CommentStore) DropPending(clientRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropPendingLocked(clientRef)
}

func (s *CommentStore) dropPendingLocked(clientRef string) {
	if _, ok := s.pending[clientRef]; !ok {
		return
	}
	delete(s.pending, clientRef)
	for i, ref := range s.pendingOrder {
		if ref == clientRef {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the confirmed comment with the given id.
func (s *CommentStore) Get(id string) (*entity.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byId[id]
	if !ok {
		return nil, false
	}
	return cloneComment(c), true
}

// List returns copies of all comments in insertion order, confirmed first,
// pending drafts last.
func (s *CommentStore) List() []entity.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Comment, 0, len(s.order)+len(s.pendingOrder))
	for _, id := range s.order {
		out = append(out, *cloneComment(s.byId[id]))
	}
	for _, ref := range s.pendingOrder {
		out = append(out, *cloneComment(s.pending[ref]))
	}
	return out
}

func (s *CommentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *CommentStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// mergeReplies keeps every previously seen reply in its original position
// and appends unseen incoming replies in arrival order.
func mergeReplies(existing, incoming []entity.Reply) []entity.Reply {
	merged := make([]entity.Reply, len(existing))
	copy(merged, existing)

	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Id] = true
	}
	for _, r := range incoming {
		if !seen[r.Id] {
			merged = append(merged, r)
			seen[r.Id] = true
		}
	}
	return merged
}

func cloneComment(c *entity.Comment) *entity.Comment {
	cp := *c
	cp.Replies = make([]entity.Reply, len(c.Replies))
	copy(cp.Replies, c.Replies)
	return &cp
}
