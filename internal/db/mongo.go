package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo collection names.
const (
	UsersCollection = "users"
	TasksCollection = "tasks"
)

// NewMongo connects to MongoDB and returns the named database.
func NewMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(database), nil
}

// EnsureMongoIndexes creates the indexes the document store relies on:
// unique email, the title+description text index, and query helpers.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "manager_id", Value: 1}}},
	}
	if _, err := database.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}

	tasks := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		{Keys: bson.D{{Key: "due_date", Value: 1}}},
		{Keys: bson.D{{Key: "notifications.user_id", Value: 1}}},
	}
	if _, err := database.Collection(TasksCollection).Indexes().CreateMany(ctx, tasks); err != nil {
		return fmt.Errorf("task indexes: %w", err)
	}
	return nil
}
