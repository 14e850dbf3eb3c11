package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/secondchance/internal/domain/item"
	"github.com/geocoder89/secondchance/internal/domain/user"
)

func TestUsersRepo_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	created, err := r.Create(ctx, user.User{Email: "a@x.com", FirstName: "A", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected assigned id")
	}

	byEmail, err := r.GetByEmail(ctx, "a@x.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("GetByEmail = %+v, %v", byEmail, err)
	}

	byID, err := r.GetByID(ctx, created.ID)
	if err != nil || byID.Email != "a@x.com" {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}

	if _, err := r.Create(ctx, user.User{Email: "a@x.com"}); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("duplicate Create got %v, want ErrEmailTaken", err)
	}

	if _, err := r.GetByEmail(ctx, "missing@x.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("GetByEmail(missing) got %v", err)
	}
}

func TestUsersRepo_Update(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, _ := r.Create(ctx, user.User{Email: "a@x.com", FirstName: "A"})
	u.FirstName = "Z"
	u.UpdatedAt = time.Now()

	if err := r.Update(ctx, u); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	got, _ := r.GetByID(ctx, u.ID)
	if got.FirstName != "Z" {
		t.Fatalf("FirstName = %q, want Z", got.FirstName)
	}

	if err := r.Update(ctx, user.User{ID: "nope"}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("Update(missing) got %v", err)
	}
}

func TestItemsRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	r := NewItemsRepo()

	for _, id := range []string{"1", "2", "3"} {
		if _, err := r.Create(ctx, item.Item{"id": id, "name": "item " + id}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	list, _ := r.List(ctx)
	if len(list) != 3 || list[0].ID() != "1" || list[2].ID() != "3" {
		t.Fatalf("List not in insertion order: %v", list)
	}

	if err := r.Update(ctx, "2", map[string]any{"name": "renamed", "price": 5.0}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, _ := r.GetByID(ctx, "2")
	if got["name"] != "renamed" || got["price"] != 5.0 {
		t.Fatalf("merge not applied: %v", got)
	}

	if err := r.Update(ctx, "9", map[string]any{"x": 1}); !errors.Is(err, item.ErrNotFound) {
		t.Fatalf("Update(missing) got %v", err)
	}

	removed, err := r.Delete(ctx, "2")
	if err != nil || removed.ID() != "2" {
		t.Fatalf("Delete = %v, %v", removed, err)
	}

	if _, err := r.GetByID(ctx, "2"); !errors.Is(err, item.ErrNotFound) {
		t.Fatalf("GetByID after delete got %v", err)
	}

	if _, err := r.Delete(ctx, "2"); !errors.Is(err, item.ErrNotFound) {
		t.Fatalf("second Delete got %v", err)
	}

	list, _ = r.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 items left, got %d", len(list))
	}
}

func TestItemsRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewItemsRepo()

	_, _ = r.Create(ctx, item.Item{"id": "1", "name": "orig"})

	got, _ := r.GetByID(ctx, "1")
	got["name"] = "mutated"

	again, _ := r.GetByID(ctx, "1")
	if again["name"] != "orig" {
		t.Fatalf("store was mutated through a returned item")
	}
}
