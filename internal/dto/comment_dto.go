package dto

import (
	"time"
)

// Wire message types for the comment channel. One JSON frame per message,
// dispatched on the "type" field.
const (
	TypeAuth             = "auth"
	TypeAuthSuccess      = "auth_success"
	TypeAuthFailed       = "auth_failed"
	TypeExistingComments = "existing_comments"
	TypeNewComment       = "new_comment"
	TypeNewReply         = "new_reply"
	TypeResolveComment   = "resolve_comment"
	TypeCommentResolved  = "comment_resolved"
	TypeError            = "error"
)

// Envelope is the minimal decode used to pick the concrete message struct.
type Envelope struct {
	Type string `json:"type" validate:"required"`
}

type PositionDTO struct {
	Top   float64 `json:"top"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// AuthMessage is the first frame on every connection. No comment traffic is
// accepted before the server answers auth_success.
type AuthMessage struct {
	Type            string `json:"type" validate:"required,eq=auth"`
	UserId          string `json:"user_id" validate:"required"`
	UserName        string `json:"user_name"`
	UserEmail       string `json:"user_email"`
	UserDisplayName string `json:"user_display_name"`
	FirebaseToken   string `json:"firebase_token" validate:"required"`
	ShareToken      string `json:"share_token"`
}

type NewCommentMessage struct {
	Type          string       `json:"type" validate:"required,eq=new_comment"`
	ClientRef     string       `json:"client_ref,omitempty"`
	Content       string       `json:"content" validate:"required"`
	SelectionText string       `json:"selection_text,omitempty"`
	Position      *PositionDTO `json:"position,omitempty"`
}

type NewReplyMessage struct {
	Type      string `json:"type" validate:"required,eq=new_reply"`
	CommentId string `json:"comment_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type ResolveCommentMessage struct {
	Type      string `json:"type" validate:"required,eq=resolve_comment"`
	CommentId string `json:"comment_id" validate:"required"`
}

type ReplyDTO struct {
	Id        string    `json:"id" validate:"required"`
	UserId    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentDTO struct {
	Id            string       `json:"id" validate:"required"`
	ClientRef     string       `json:"client_ref,omitempty"`
	UserId        string       `json:"user_id"`
	UserName      string       `json:"user_name"`
	Content       string       `json:"content" validate:"required"`
	SelectionText string       `json:"selection_text,omitempty"`
	Position      *PositionDTO `json:"position,omitempty"`
	Status        string       `json:"status" validate:"required,oneof=open resolved"`
	CreatedAt     time.Time    `json:"created_at"`
	Replies       []ReplyDTO   `json:"replies"`
}

// AuthResultMessage covers both auth_success and auth_failed.
type AuthResultMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type ExistingCommentsMessage struct {
	Type     string       `json:"type"`
	Comments []CommentDTO `json:"comments"`
}

// CommentEventMessage carries the full updated comment for new_comment,
// new_reply and comment_resolved broadcasts.
type CommentEventMessage struct {
	Type    string     `json:"type"`
	Comment CommentDTO `json:"comment" validate:"required"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
