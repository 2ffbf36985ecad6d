package mongorepo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskmanager/internal/db"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

type userRepository struct {
	coll *mongo.Collection
}

// NewUserRepository builds a MongoDB-backed user repository.
func NewUserRepository(database *mongo.Database) repository.UserRepository {
	return &userRepository{coll: database.Collection(db.UsersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, toUserDoc(user))
	return translate(err)
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID.String()}, toUserDoc(user))
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": keys}})
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	user := doc.toModel()
	return &user, nil
}

func (r *userRepository) find(ctx context.Context, filter bson.M) ([]model.User, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

// reportIDs lists the ids of users whose manager is managerID.
func reportIDs(ctx context.Context, users *mongo.Collection, managerID uuid.UUID) ([]string, error) {
	cursor, err := users.Find(ctx, bson.M{"manager_id": managerID.String()},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
