package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ShareTokenRepository remembers share tokens that already passed
// validation, so repeated access checks for the same document don't re-run
// the full check. Entries expire after an hour.
type ShareTokenRepository struct {
	cache *cache.Cache
}

func NewShareTokenRepository() *ShareTokenRepository {
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ShareTokenRepository{cache: c}
}

func (r *ShareTokenRepository) MarkValid(documentId, shareToken string) {
	r.cache.Set(key(documentId, shareToken), true, cache.DefaultExpiration)
}

func (r *ShareTokenRepository) IsValid(documentId, shareToken string) bool {
	_, found := r.cache.Get(key(documentId, shareToken))
	return found
}

func key(documentId, shareToken string) string {
	return documentId + "|" + shareToken
}
