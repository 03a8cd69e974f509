// Package memory provides an in-memory user registry, used in tests.
package memory

import (
	"context"
	"sync"

	"github.com/padronlabs/padron/models"
)

type repo struct {
	mu    *sync.RWMutex
	items map[string]models.UserRecord
}

func New() models.UserRepository {
	return &repo{
		mu:    &sync.RWMutex{},
		items: make(map[string]models.UserRecord),
	}
}

func (r *repo) Put(_ context.Context, id string, user *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[id] = *user

	return nil
}

func (r *repo) All(context.Context) ([]models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ans := make([]models.UserRecord, 0, len(r.items))

	for _, item := range r.items {
		ans = append(ans, item)
	}

	return ans, nil
}
