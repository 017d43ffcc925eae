package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/true-feedback/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Store = (*MongoStore)(nil)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// MongoStore keeps one document per user with the messages embedded in it.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

type mongoUser struct {
	ID                  string         `bson:"_id"`
	Username            string         `bson:"username"`
	Email               string         `bson:"email"`
	PasswordHash        string         `bson:"password_hash"`
	VerifyCode          string         `bson:"verify_code"`
	VerifyCodeExpiry    time.Time      `bson:"verify_code_expiry"`
	IsVerified          bool           `bson:"is_verified"`
	IsAcceptingMessages bool           `bson:"is_accepting_messages"`
	Messages            []mongoMessage `bson:"messages,omitempty"`
	CreatedAt           time.Time      `bson:"created_at"`
	UpdatedAt           time.Time      `bson:"updated_at"`
}

type mongoMessage struct {
	ID        string    `bson:"_id"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

// withoutMessages keeps user lookups from loading the whole inbox.
var withoutMessages = bson.D{{Key: "messages", Value: 0}}

// NewMongoStore connects to MongoDB and ensures the users collection indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &MongoStore{
		client: client,
		users:  client.Database(cfg.Database).Collection("users"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("users_email_key").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetName("users_verified_username_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_verified", Value: true}}),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}, {Key: "is_verified", Value: -1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("users_username_idx"),
		},
	})
	return err
}

// GetUserByID retrieves a user by ID.
func (s *MongoStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id.String()}}, nil)
}

// GetUserByUsername retrieves a user by username.
func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	sort := bson.D{{Key: "is_verified", Value: -1}, {Key: "created_at", Value: -1}}
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}}, sort)
}

// GetUserByEmail retrieves a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}}, nil)
}

func (s *MongoStore) findUser(ctx context.Context, filter, sort bson.D) (*domain.User, error) {
	opts := options.FindOne().SetProjection(withoutMessages)
	if sort != nil {
		opts.SetSort(sort)
	}

	var doc mongoUser
	err := s.users.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

// VerifiedUsernameExists checks whether a verified user holds the username.
func (s *MongoStore) VerifiedUsernameExists(ctx context.Context, username string) (bool, error) {
	filter := bson.D{{Key: "username", Value: username}, {Key: "is_verified", Value: true}}
	n, err := s.users.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateUser inserts a new user document with an empty inbox.
func (s *MongoStore) CreateUser(ctx context.Context, user *domain.User) error {
	doc := mongoUser{
		ID:                  user.ID.String(),
		Username:            user.Username,
		Email:               user.Email,
		PasswordHash:        user.PasswordHash,
		VerifyCode:          user.VerifyCode,
		VerifyCodeExpiry:    user.VerifyCodeExpiry,
		IsVerified:          user.IsVerified,
		IsAcceptingMessages: user.IsAcceptingMessages,
		Messages:            []mongoMessage{},
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}
	_, err := s.users.InsertOne(ctx, doc)
	return mapDuplicateKey(err)
}

// ResetPendingRegistration overwrites the registration fields of an unverified user.
func (s *MongoStore) ResetPendingRegistration(ctx context.Context, id uuid.UUID, reg PendingRegistration) error {
	filter := bson.D{{Key: "_id", Value: id.String()}, {Key: "is_verified", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "username", Value: reg.Username},
		{Key: "password_hash", Value: reg.PasswordHash},
		{Key: "verify_code", Value: reg.VerifyCode},
		{Key: "verify_code_expiry", Value: reg.VerifyCodeExpiry},
		{Key: "updated_at", Value: reg.UpdatedAt},
	}}}
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapDuplicateKey(err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// MarkVerified sets is_verified when the code matches and is unexpired at now.
func (s *MongoStore) MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "verify_code", Value: code},
		{Key: "verify_code_expiry", Value: bson.D{{Key: "$gte", Value: now}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_verified", Value: true},
		{Key: "updated_at", Value: now},
	}}}
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapDuplicateKey(err)
	}
	return result.MatchedCount > 0, nil
}

// SetAcceptingMessages updates the acceptance flag and returns the stored value.
func (s *MongoStore) SetAcceptingMessages(ctx context.Context, id uuid.UUID, accepting bool) (bool, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_accepting_messages", Value: accepting},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "is_accepting_messages", Value: 1}})

	var doc struct {
		IsAcceptingMessages bool `bson:"is_accepting_messages"`
	}
	err := s.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id.String()}}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, domain.ErrUserNotFound
	}
	if err != nil {
		return false, err
	}
	return doc.IsAcceptingMessages, nil
}

// DeleteUser removes the user document together with its embedded messages.
func (s *MongoStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AppendMessage pushes msg onto the inbox in one conditional update.
func (s *MongoStore) AppendMessage(ctx context.Context, userID uuid.UUID, msg *domain.Message) error {
	filter := bson.D{
		{Key: "_id", Value: userID.String()},
		{Key: "is_accepting_messages", Value: true},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "messages", Value: mongoMessage{
			ID:        msg.ID,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: userID.String()}}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return domain.ErrMessagesClosed
}

// ListMessages unwinds, sorts and regroups the embedded messages, newest first.
func (s *MongoStore) ListMessages(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: userID.String()}}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$sort", Value: bson.D{{Key: "messages.created_at", Value: -1}, {Key: "messages._id", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id"},
			{Key: "messages", Value: bson.D{{Key: "$push", Value: "$messages"}}},
		}}},
	}

	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		Messages []mongoMessage `bson:"messages"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	messages := []domain.Message{}
	for _, g := range groups {
		for _, m := range g.Messages {
			messages = append(messages, domain.Message{
				ID:        m.ID,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.UTC(),
			})
		}
	}
	return messages, nil
}

// DeleteMessage pulls one message out of the user's own document.
func (s *MongoStore) DeleteMessage(ctx context.Context, userID uuid.UUID, messageID string) error {
	filter := bson.D{{Key: "_id", Value: userID.String()}}
	update := bson.D{{Key: "$pull", Value: bson.D{
		{Key: "messages", Value: bson.D{{Key: "_id", Value: messageID}}},
	}}}
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Ping checks the MongoDB connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d *mongoUser) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &domain.User{
		ID:                  id,
		Username:            d.Username,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		VerifyCode:          d.VerifyCode,
		VerifyCodeExpiry:    d.VerifyCodeExpiry.UTC(),
		IsVerified:          d.IsVerified,
		IsAcceptingMessages: d.IsAcceptingMessages,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}, nil
}

func mapDuplicateKey(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	switch msg := err.Error(); {
	case strings.Contains(msg, "users_email_key"):
		return domain.ErrUserAlreadyExists
	case strings.Contains(msg, "users_verified_username_key"):
		return domain.ErrUsernameAlreadyExists
	default:
		return err
	}
}
