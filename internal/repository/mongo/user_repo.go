package mongo

import (
	"context"
	"errors"
	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || len(user.Roles) == 0 {
		return primitive.NilObjectID, errors.New("user email, password hash, and roles are required")
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		// email has a unique index
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs returns the users found among ids. Missing ids are skipped.
func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	return decodeAll[domain.User](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
}

// List returns every user ordered by name.
func (r *mongoUserRepository) List(ctx context.Context) ([]domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return decodeAll[domain.User](ctx, r.collection, bson.M{}, opts)
}

// ListAthletesByTrainer returns athletes whose assigned trainer is trainerID.
func (r *mongoUserRepository) ListAthletesByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	filter := bson.M{"trainerId": trainerID, "roles": domain.RoleAthlete}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return decodeAll[domain.User](ctx, r.collection, filter, opts)
}

func (r *mongoUserRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"isActive": active, "updatedAt": time.Now().UTC()}})
}

func (r *mongoUserRepository) SetRoles(ctx context.Context, id primitive.ObjectID, roles domain.Roles) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"roles": roles, "updatedAt": time.Now().UTC()}})
}

// SetTrainer sets or, for a nil trainerID, unsets the athlete's trainer.
func (r *mongoUserRepository) SetTrainer(ctx context.Context, athleteID primitive.ObjectID, trainerID *primitive.ObjectID) error {
	now := time.Now().UTC()
	var update bson.M
	if trainerID != nil {
		update = bson.M{"$set": bson.M{"trainerId": *trainerID, "updatedAt": now}}
	} else {
		update = bson.M{
			"$unset": bson.M{"trainerId": ""},
			"$set":   bson.M{"updatedAt": now},
		}
	}
	return r.updateOne(ctx, athleteID, update)
}

func (r *mongoUserRepository) UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}})
}

func (r *mongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	// ModifiedCount may be 0 when the value was already set, which is fine.
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "roles", Value: 1}},
		},
		{
			// Sparse because only athletes carry trainerId.
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
