package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// ChatRepository stores conversations as single documents with their
// embedded message log. The unique index on pair_key is the source of truth
// for one-conversation-per-pair; appends go through $push so concurrent
// senders never overwrite each other.
type ChatRepository struct {
	coll *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{coll: db.Collection("chats")}
}

func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("pair_key_unique"),
		},
		{
			Keys: bson.D{
				{Key: "participants.account_id", Value: 1},
				{Key: "participants.kind", Value: 1},
			},
			Options: options.Index().SetName("participants_idx"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("updated_at_idx"),
		},
	})
	return err
}

// Create inserts a conversation for the given pair. A concurrent create for
// the same pair surfaces as ErrDuplicateConversation via the unique index.
func (r *ChatRepository) Create(ctx context.Context, a, b models.AccountRef) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:      primitive.NewObjectID(),
		PairKey: models.PairKey(a, b),
		Participants: []models.Participant{
			{AccountRef: a},
			{AccountRef: b},
		},
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.ErrDuplicateConversation
		}
		return nil, err
	}
	return conv, nil
}

// FindByParticipantPair looks up the conversation for an unordered pair.
func (r *ChatRepository) FindByParticipantPair(ctx context.Context, a, b models.AccountRef) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.coll.FindOne(ctx, bson.M{"pair_key": models.PairKey(a, b)}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// FindByParticipant returns every conversation ref takes part in, most
// recently active first.
func (r *ChatRepository) FindByParticipant(ctx context.Context, ref models.AccountRef) ([]*models.Conversation, error) {
	filter := bson.M{"participants": bson.M{"$elemMatch": bson.M{
		"account_id": ref.AccountID,
		"kind":       ref.Kind,
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *ChatRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// AppendMessage atomically pushes msg onto the embedded log and bumps
// updated_at, returning the post-image. No read-modify-write: two senders
// racing on the same conversation both land.
func (r *ChatRepository) AppendMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) (*models.Conversation, error) {
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": msg.SentAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv models.Conversation
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}
