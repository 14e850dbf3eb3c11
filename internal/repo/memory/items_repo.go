package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/secondchance/internal/domain/item"
	"github.com/google/uuid"
)

// ItemsRepo keeps items in insertion order and, like the document store,
// finds them by scanning for the "id" field.
type ItemsRepo struct {
	mu    sync.RWMutex
	items []item.Item
}

func NewItemsRepo() *ItemsRepo {
	return &ItemsRepo{}
}

func clone(it item.Item) item.Item {
	out := make(item.Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func (r *ItemsRepo) indexOf(id string) int {
	for i, it := range r.items {
		if it.ID() == id {
			return i
		}
	}
	return -1
}

func (r *ItemsRepo) List(_ context.Context) ([]item.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]item.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, clone(it))
	}

	return out, nil
}

func (r *ItemsRepo) Create(_ context.Context, it item.Item) (item.Item, error) {
	stored := clone(it)
	stored[item.FieldStoreID] = uuid.NewString()

	r.mu.Lock()
	r.items = append(r.items, stored)
	r.mu.Unlock()

	return clone(stored), nil
}

func (r *ItemsRepo) GetByID(_ context.Context, id string) (item.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, item.ErrNotFound
	}

	return clone(r.items[i]), nil
}

func (r *ItemsRepo) Update(_ context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return item.ErrNotFound
	}

	for k, v := range fields {
		r.items[i][k] = v
	}

	return nil
}

func (r *ItemsRepo) Delete(_ context.Context, id string) (item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, item.ErrNotFound
	}

	removed := r.items[i]
	r.items = append(r.items[:i], r.items[i+1:]...)

	return removed, nil
}
