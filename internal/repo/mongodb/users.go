package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/secondchance/internal/db"
	"github.com/geocoder89/secondchance/internal/domain/user"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type userDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	FirstName string        `bson:"firstName"`
	LastName  string        `bson:"lastName"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt,omitempty"`
}

func (d userDoc) toDomain() user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type UsersRepo struct {
	coll *mongo.Collection
	obs  Observer
}

func NewUsersRepo(database *mongo.Database, obs Observer) *UsersRepo {
	return &UsersRepo{
		coll: database.Collection(db.UsersCollection),
		obs:  observerOrNoop(obs),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.D{{Key: "email", Value: email}})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	return r.findOne(ctx, "users.get_by_id", bson.D{{Key: "_id", Value: oid}})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.D) (user.User, error) {
	var doc userDoc

	err := r.obs.ObserveDB(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("find user: %w", err)
	}

	return doc.toDomain(), nil
}

// Create inserts u and returns it with the store assigned id. The unique
// email index turns a lost registration race into ErrEmailTaken.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	doc := userDoc{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}

	var res *mongo.InsertOneResult

	err := r.obs.ObserveDB("users.create", func() error {
		var err error
		res, err = r.coll.InsertOne(ctx, doc)
		return err
	})

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return user.User{}, fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}

	u.ID = oid.Hex()
	return u, nil
}

// Update persists the mutable profile fields of u.
func (r *UsersRepo) Update(ctx context.Context, u user.User) error {
	oid, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return user.ErrNotFound
	}

	set := bson.D{
		{Key: "firstName", Value: u.FirstName},
		{Key: "lastName", Value: u.LastName},
		{Key: "password", Value: u.PasswordHash},
		{Key: "updatedAt", Value: u.UpdatedAt},
	}

	var res *mongo.UpdateResult

	err = r.obs.ObserveDB("users.update", func() error {
		var err error
		res, err = r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}})
		return err
	})

	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}

	return nil
}
