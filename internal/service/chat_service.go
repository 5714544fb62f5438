package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/directory"
	"github.com/yg10008/GuildHire-YG/internal/metrics"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Conversation creation status values returned by InitiateOrGet.
const (
	StatusCreated  = "created"
	StatusExisting = "existing"
)

// Store is the persistence surface the service needs from the chat
// repository.
type Store interface {
	Create(ctx context.Context, a, b models.AccountRef) (*models.Conversation, error)
	FindByParticipantPair(ctx context.Context, a, b models.AccountRef) (*models.Conversation, error)
	FindByParticipant(ctx context.Context, ref models.AccountRef) ([]*models.Conversation, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) (*models.Conversation, error)
}

// Broadcaster pushes a persisted message to the conversation's room,
// skipping the sender's own connections. Implemented by the ws hub.
type Broadcaster interface {
	BroadcastMessage(conversationID string, msg *models.Message, exclude models.AccountRef)
}

// EventSink receives best-effort post-persistence events (kafka).
type EventSink interface {
	MessageSent(ctx context.Context, conversationID string, msg *models.Message)
}

// ChatService enforces participant authorization and input validation in
// front of the store, and triggers realtime delivery after persistence.
type ChatService struct {
	store    Store
	resolver directory.ProfileResolver
	hub      Broadcaster
	events   EventSink
	log      *zap.SugaredLogger
}

func NewChatService(store Store, resolver directory.ProfileResolver, hub Broadcaster, events EventSink, log *zap.SugaredLogger) *ChatService {
	return &ChatService{store: store, resolver: resolver, hub: hub, events: events, log: log}
}

// InitiateOrGet returns the conversation for the pair, creating it on first
// request. Calling it twice with the participants in either order yields the
// same conversation.
func (s *ChatService) InitiateOrGet(ctx context.Context, requester models.AccountRef, participants []models.AccountRef) (*models.Conversation, string, error) {
	if len(participants) != 2 {
		return nil, "", apperr.Validation("participants must be exactly 2 accounts")
	}
	a, b := participants[0], participants[1]
	if err := models.ValidatePair(a, b); err != nil {
		return nil, "", apperr.Validation("%s", err)
	}
	if !requester.Equal(a) && !requester.Equal(b) {
		return nil, "", apperr.ErrForbidden
	}

	conv, err := s.store.FindByParticipantPair(ctx, a, b)
	switch {
	case err == nil:
		s.populateParticipants(ctx, conv)
		return conv, StatusExisting, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, "", err
	}

	conv, err = s.store.Create(ctx, a, b)
	if errors.Is(err, apperr.ErrDuplicateConversation) {
		// lost the creation race; the winner's document is authoritative
		conv, err = s.store.FindByParticipantPair(ctx, a, b)
		if err != nil {
			return nil, "", err
		}
		s.populateParticipants(ctx, conv)
		return conv, StatusExisting, nil
	}
	if err != nil {
		return nil, "", err
	}
	s.populateParticipants(ctx, conv)
	return conv, StatusCreated, nil
}

// List returns the requester's conversations, most recently updated first.
func (s *ChatService) List(ctx context.Context, requester models.AccountRef) ([]*models.Conversation, error) {
	convs, err := s.store.FindByParticipant(ctx, requester)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		s.populateParticipants(ctx, c)
	}
	return convs, nil
}

// Get returns one conversation with participants and every message sender
// populated. Non-participants get ErrForbidden.
func (s *ChatService) Get(ctx context.Context, requester models.AccountRef, conversationID primitive.ObjectID) (*models.Conversation, error) {
	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requester) {
		return nil, apperr.ErrForbidden
	}
	s.populateParticipants(ctx, conv)
	for i := range conv.Messages {
		conv.Messages[i].Sender = s.resolveQuiet(ctx, conv.Messages[i].SenderRef())
	}
	return conv, nil
}

// Send validates and appends a message, then hands it to the realtime hub
// for room delivery. Broadcast failure never affects the stored message.
func (s *ChatService) Send(ctx context.Context, requester models.AccountRef, conversationID primitive.ObjectID, content string) (*models.Conversation, *models.Message, error) {
	if err := models.ValidateContent(content); err != nil {
		return nil, nil, apperr.Validation("%s", err)
	}

	conv, err := s.store.FindByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(requester) {
		return nil, nil, apperr.ErrForbidden
	}

	msg := models.Message{
		ID:       primitive.NewObjectID(),
		SenderID: requester.AccountID,
		Kind:     requester.Kind,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	conv, err = s.store.AppendMessage(ctx, conversationID, msg)
	if err != nil {
		return nil, nil, err
	}
	metrics.MessagesSent.Inc()

	newMsg := &conv.Messages[len(conv.Messages)-1]
	newMsg.Sender = s.resolveQuiet(ctx, requester)
	s.populateParticipants(ctx, conv)

	if s.hub != nil {
		s.hub.BroadcastMessage(conversationID.Hex(), newMsg, requester)
	}
	if s.events != nil {
		s.events.MessageSent(ctx, conversationID.Hex(), newMsg)
	}
	return conv, newMsg, nil
}

// CanJoin re-checks room authorization for the gateway: the conversation is
// re-fetched so a stale connection cannot join on cached state.
func (s *ChatService) CanJoin(ctx context.Context, conversationID string, ref models.AccountRef) error {
	id, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return apperr.ErrNotFound
	}
	conv, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(ref) {
		return apperr.ErrForbidden
	}
	return nil
}

func (s *ChatService) populateParticipants(ctx context.Context, conv *models.Conversation) {
	for i := range conv.Participants {
		conv.Participants[i].Profile = s.resolveQuiet(ctx, conv.Participants[i].AccountRef)
	}
}

// resolveQuiet looks up a profile best-effort: on failure the profile is
// simply omitted from the response.
func (s *ChatService) resolveQuiet(ctx context.Context, ref models.AccountRef) *models.Profile {
	p, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		s.log.Warnw("profile resolution failed", "ref", ref.String(), "err", err)
		return nil
	}
	return p
}
