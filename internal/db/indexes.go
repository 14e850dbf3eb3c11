package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	UsersCollection = "users"
	ItemsCollection = "secondChanceItems"
)

// EnsureIndexes backs the register handler's existence check with a unique
// email index and makes the id lookups on items indexed.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})

	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	_, err = database.Collection(ItemsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetName("items_id"),
	})

	if err != nil {
		return fmt.Errorf("create items id index: %w", err)
	}

	return nil
}
