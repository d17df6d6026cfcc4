package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"
	"clinedit-collab/internal/mapper"
	"clinedit-collab/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid bearer token")
	ErrUnknownComment = errors.New("unknown comment id")
)

type ICommentService interface {
	Authenticate(msg *dto.AuthMessage) (*entity.Identity, error)
	Snapshot(documentId string) *dto.ExistingCommentsMessage
	AddComment(documentId string, author *entity.Identity, msg *dto.NewCommentMessage) (*dto.CommentEventMessage, error)
	AddReply(documentId string, author *entity.Identity, msg *dto.NewReplyMessage) (*dto.CommentEventMessage, error)
	Resolve(documentId string, msg *dto.ResolveCommentMessage) (*dto.CommentEventMessage, error)
}

// CommentService owns the relay's per-document comment threads. State is
// in-memory only: this relay is a development/integration stand-in for the
// production comment backend, not a persistence layer.
type CommentService struct {
	mu    sync.Mutex
	rooms map[string]*room

	validate  *validator.Validate
	mapper    *mapper.CommentMapper
	jwtSecret string
	logger    logger.ILogger
}

type room struct {
	comments map[string]*entity.Comment
	order    []string
}

func NewCommentService(jwtSecret string, log logger.ILogger) *CommentService {
	return &CommentService{
		rooms:     make(map[string]*room),
		validate:  validator.New(),
		mapper:    mapper.NewCommentMapper(),
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// Authenticate checks the handshake frame. With a secret configured the
// bearer token must be a valid HS256 JWT; development mode accepts the
// claimed identity as-is (the real validator is an external service).
func (s *CommentService) Authenticate(msg *dto.AuthMessage) (*entity.Identity, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("auth payload: %w", err)
	}

	identity := &entity.Identity{
		UserId:      msg.UserId,
		UserName:    msg.UserName,
		Email:       msg.UserEmail,
		DisplayName: msg.UserDisplayName,
		Token:       msg.FirebaseToken,
	}

	if s.jwtSecret == "" {
		return identity, nil
	}

	token, err := jwt.Parse(msg.FirebaseToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if uid, ok := claims["user_id"].(string); ok && uid != "" {
			identity.UserId = uid
		} else if sub, _ := claims.GetSubject(); sub != "" {
			identity.UserId = sub
		}
	}
	return identity, nil
}

// Snapshot returns the full existing-comment list for the document, sent
// exactly once per connection right after auth_success.
func (s *CommentService) Snapshot(documentId string) *dto.ExistingCommentsMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[documentId]
	msg := &dto.ExistingCommentsMessage{
		Type:     dto.TypeExistingComments,
		Comments: []dto.CommentDTO{},
	}
	if r == nil {
		return msg
	}
	for _, id := range r.order {
		msg.Comments = append(msg.Comments, *s.mapper.CommentToDTO(r.comments[id]))
	}
	return msg
}

func (s *CommentService) AddComment(documentId string, author *entity.Identity, msg *dto.NewCommentMessage) (*dto.CommentEventMessage, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("new_comment payload: %w", err)
	}

	comment := &entity.Comment{
		Id:            uuid.NewString(),
		ClientRef:     msg.ClientRef,
		UserId:        author.UserId,
		UserName:      displayName(author),
		Content:       msg.Content,
		SelectionText: msg.SelectionText,
		Status:        entity.CommentStatusOpen,
		CreatedAt:     time.Now().UTC(),
		Replies:       []entity.Reply{},
	}

	s.mu.Lock()
	r := s.roomLocked(documentId)
	r.comments[comment.Id] = comment
	r.order = append(r.order, comment.Id)
	event := s.eventLocked(dto.TypeNewComment, comment, msg.Position)
	s.mu.Unlock()

	return event, nil
}

func (s *CommentService) AddReply(documentId string, author *entity.Identity, msg *dto.NewReplyMessage) (*dto.CommentEventMessage, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("new_reply payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[documentId]
	if r == nil {
		return nil, ErrUnknownComment
	}
	comment, ok := r.comments[msg.CommentId]
	if !ok {
		return nil, ErrUnknownComment
	}

	comment.Replies = append(comment.Replies, entity.Reply{
		Id:        uuid.NewString(),
		UserId:    author.UserId,
		UserName:  displayName(author),
		Content:   msg.Content,
		CreatedAt: time.Now().UTC(),
	})

	return s.eventLocked(dto.TypeNewReply, comment, nil), nil
}

// Resolve flips the comment to resolved. Idempotent: resolving an already
// resolved comment re-broadcasts the same state.
func (s *CommentService) Resolve(documentId string, msg *dto.ResolveCommentMessage) (*dto.CommentEventMessage, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("resolve_comment payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[documentId]
	if r == nil {
		return nil, ErrUnknownComment
	}
	comment, ok := r.comments[msg.CommentId]
	if !ok {
		return nil, ErrUnknownComment
	}

	comment.Status = entity.CommentStatusResolved

	return s.eventLocked(dto.TypeCommentResolved, comment, nil), nil
}

func (s *CommentService) roomLocked(documentId string) *room {
	r := s.rooms[documentId]
	if r == nil {
		r = &room{comments: make(map[string]*entity.Comment)}
		s.rooms[documentId] = r
	}
	return r
}

func (s *CommentService) eventLocked(msgType string, comment *entity.Comment, pos *dto.PositionDTO) *dto.CommentEventMessage {
	d := s.mapper.CommentToDTO(comment)
	d.Position = pos
	return &dto.CommentEventMessage{Type: msgType, Comment: *d}
}

func displayName(id *entity.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.UserName
}
