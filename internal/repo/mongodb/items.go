package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/secondchance/internal/db"
	"github.com/geocoder89/secondchance/internal/domain/item"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ItemsRepo addresses items by their application level "id" field, never by _id.
type ItemsRepo struct {
	coll *mongo.Collection
	obs  Observer
}

func NewItemsRepo(database *mongo.Database, obs Observer) *ItemsRepo {
	return &ItemsRepo{
		coll: database.Collection(db.ItemsCollection),
		obs:  observerOrNoop(obs),
	}
}

func byID(id string) bson.D {
	return bson.D{{Key: item.FieldID, Value: id}}
}

func toItem(doc bson.M) item.Item {
	return item.Item(plainMap(doc))
}

func (r *ItemsRepo) List(ctx context.Context) ([]item.Item, error) {
	var docs []bson.M

	err := r.obs.ObserveDB("items.list", func() error {
		cur, err := r.coll.Find(ctx, bson.D{})
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})

	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	out := make([]item.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, toItem(d))
	}

	return out, nil
}

func (r *ItemsRepo) Create(ctx context.Context, it item.Item) (item.Item, error) {
	var res *mongo.InsertOneResult

	err := r.obs.ObserveDB("items.create", func() error {
		var err error
		res, err = r.coll.InsertOne(ctx, map[string]any(it))
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	out := make(item.Item, len(it)+1)
	for k, v := range it {
		out[k] = v
	}
	out[item.FieldStoreID] = plain(res.InsertedID)

	return out, nil
}

func (r *ItemsRepo) GetByID(ctx context.Context, id string) (item.Item, error) {
	var doc bson.M

	err := r.obs.ObserveDB("items.get", func() error {
		return r.coll.FindOne(ctx, byID(id)).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return toItem(doc), nil
}

// Update merges fields into the item with the given id.
func (r *ItemsRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		// $set refuses an empty document; still report a missing item
		_, err := r.GetByID(ctx, id)
		return err
	}

	var res *mongo.UpdateResult

	err := r.obs.ObserveDB("items.update", func() error {
		var err error
		res, err = r.coll.UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: fields}})
		return err
	})

	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	if res.MatchedCount == 0 {
		return item.ErrNotFound
	}

	return nil
}

// Delete removes the item and returns what was stored, so the caller can
// clean up its image.
func (r *ItemsRepo) Delete(ctx context.Context, id string) (item.Item, error) {
	var doc bson.M

	err := r.obs.ObserveDB("items.delete", func() error {
		return r.coll.FindOneAndDelete(ctx, byID(id)).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("delete item: %w", err)
	}

	return toItem(doc), nil
}
