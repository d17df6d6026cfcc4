package mapper

import (
	"clinedit-collab/internal/dto"
	"clinedit-collab/internal/entity"
)

type CommentMapper struct{}

func NewCommentMapper() *CommentMapper {
	return &CommentMapper{}
}

func (m *CommentMapper) CommentToEntity(d *dto.CommentDTO) *entity.Comment {
	if d == nil {
		return nil
	}

	replies := make([]entity.Reply, 0, len(d.Replies))
	for _, r := range d.Replies {
		replies = append(replies, entity.Reply{
			Id:        r.Id,
			UserId:    r.UserId,
			UserName:  r.UserName,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}

	return &entity.Comment{
		Id:            d.Id,
		ClientRef:     d.ClientRef,
		UserId:        d.UserId,
		UserName:      d.UserName,
		Content:       d.Content,
		SelectionText: d.SelectionText,
		Status:        entity.CommentStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		Replies:       replies,
	}
}

func (m *CommentMapper) CommentToDTO(c *entity.Comment) *dto.CommentDTO {
	if c == nil {
		return nil
	}

	replies := make([]dto.ReplyDTO, 0, len(c.Replies))
	for _, r := range c.Replies {
		replies = append(replies, dto.ReplyDTO{
			Id:        r.Id,
			UserId:    r.UserId,
			UserName:  r.UserName,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}

	return &dto.CommentDTO{
		Id:            c.Id,
		ClientRef:     c.ClientRef,
		UserId:        c.UserId,
		UserName:      c.UserName,
		Content:       c.Content,
		SelectionText: c.SelectionText,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		Replies:       replies,
	}
}

func (m *CommentMapper) CommentsToEntities(ds []dto.CommentDTO) []*entity.Comment {
	out := make([]*entity.Comment, 0, len(ds))
	for i := range ds {
		out = append(out, m.CommentToEntity(&ds[i]))
	}
	return out
}
