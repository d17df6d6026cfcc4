package service

import (
	"errors"

	"clinedit-collab/internal/repository/memory"
)

var ErrInvalidShareToken = errors.New("invalid share token")

type IAccessService interface {
	CheckAccess(documentId, shareToken string) error
}

// AccessService validates share tokens for guest access to a document's
// comment channel. The reference implementation accepts any well-formed
// token and caches the result; production validation lives in the document
// backend this relay stands in for.
type AccessService struct {
	tokens *memory.ShareTokenRepository
}

func NewAccessService(tokens *memory.ShareTokenRepository) *AccessService {
	return &AccessService{tokens: tokens}
}

func (s *AccessService) CheckAccess(documentId, shareToken string) error {
	if s.tokens.IsValid(documentId, shareToken) {
		return nil
	}
	if len(shareToken) < 8 {
		return ErrInvalidShareToken
	}
	s.tokens.MarkValid(documentId, shareToken)
	return nil
}
