package mongo

import (
	"context"
	"errors"
	"fmt"

	"quiztake-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore is the document-backed implementation of app.UserStore.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

// EnsureIndexes enforces username uniqueness at the collection level.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type userDoc struct {
	ID         string `bson:"_id"`
	Username   string `bson:"username"`
	Password   string `bson:"password"`
	LoginToken string `bson:"loginToken,omitempty"`
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	doc := userDoc{ID: user.ID, Username: user.Username, Password: user.Password}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) FindByLoginToken(ctx context.Context, token string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"loginToken": token})
}

func (s *UserStore) SetLoginToken(ctx context.Context, userID, token string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"loginToken": token}})
	if err != nil {
		return fmt.Errorf("set login token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &domain.User{
		ID:         doc.ID,
		Username:   doc.Username,
		Password:   doc.Password,
		LoginToken: doc.LoginToken,
	}, nil
}
