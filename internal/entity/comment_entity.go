package entity

import (
	"time"
)

type CommentStatus string

const (
	CommentStatusOpen     CommentStatus = "open"
	CommentStatusResolved CommentStatus = "resolved"
)

// Comment is an annotation on a shared document. Ids are assigned by the
// comment backend; an entry without an Id is a local pending draft awaiting
// the server echo (matched by ClientRef).
type Comment struct {
	Id            string        `json:"id"`
	ClientRef     string        `json:"client_ref,omitempty"`
	UserId        string        `json:"user_id"`
	UserName      string        `json:"user_name"`
	Content       string        `json:"content"`
	SelectionText string        `json:"selection_text,omitempty"`
	Status        CommentStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	Replies       []Reply       `json:"replies"`
	Pending       bool          `json:"pending,omitempty"`
}

// Reply is a single-level response to a Comment. Replies never nest.
type Reply struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) IsResolved() bool {
	return c.Status == CommentStatusResolved
}
