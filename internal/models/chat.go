package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountKind discriminates the two account types that can take part in a
// chat. Ids are scoped per kind, so the (id, kind) pair is the identity.
type AccountKind string

const (
	KindUser      AccountKind = "User"
	KindRecruiter AccountKind = "Recruiter"
)

func (k AccountKind) Valid() bool {
	return k == KindUser || k == KindRecruiter
}

// MaxMessageLength is the upper bound on message content, in characters.
const MaxMessageLength = 1000

// AccountRef is a tagged pointer to either a user or a recruiter account.
type AccountRef struct {
	AccountID primitive.ObjectID `bson:"account_id" json:"accountId"`
	Kind      AccountKind        `bson:"kind" json:"kind"`
}

func (r AccountRef) Equal(o AccountRef) bool {
	return r.AccountID == o.AccountID && r.Kind == o.Kind
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.AccountID.Hex())
}

func (r AccountRef) Validate() error {
	if r.AccountID.IsZero() {
		return fmt.Errorf("participant account id is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("participant kind must be %s or %s", KindUser, KindRecruiter)
	}
	return nil
}

// Profile is the display projection of an account, resolved on demand.
// CompanyName is only set for recruiters.
type Profile struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Kind        AccountKind        `bson:"-" json:"kind"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	CompanyName string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
}

// Participant is an account reference with its optionally resolved profile.
type Participant struct {
	AccountRef `bson:",inline"`
	Profile    *Profile `bson:"-" json:"profile,omitempty"`
}

// Message is an append-only entry embedded in its conversation. Sender is
// populated best-effort for responses and never stored.
type Message struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	SenderID primitive.ObjectID `bson:"sender_id" json:"senderId"`
	Kind     AccountKind        `bson:"sender_kind" json:"senderKind"`
	Content  string             `bson:"content" json:"content"`
	SentAt   time.Time          `bson:"sent_at" json:"sentAt"`
	Sender   *Profile           `bson:"-" json:"sender,omitempty"`
}

func (m Message) SenderRef() AccountRef {
	return AccountRef{AccountID: m.SenderID, Kind: m.Kind}
}

// Conversation is a two-party thread with its embedded message log.
// PairKey is the canonical order-independent key of the participant pair and
// carries a unique index so at most one conversation exists per pair.
type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PairKey      string             `bson:"pair_key" json:"-"`
	Participants []Participant      `bson:"participants" json:"participants"`
	Messages     []Message          `bson:"messages" json:"messages"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether ref is one of the two participants,
// matching on both id and kind.
func (c *Conversation) HasParticipant(ref AccountRef) bool {
	for _, p := range c.Participants {
		if p.AccountRef.Equal(ref) {
			return true
		}
	}
	return false
}

// PairKey builds the canonical key for an unordered participant pair:
// {A,B} and {B,A} yield the same key.
func PairKey(a, b AccountRef) string {
	parts := []string{a.String(), b.String()}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// ValidatePair checks that the two refs are well formed and distinct.
func ValidatePair(a, b AccountRef) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if a.Equal(b) {
		return fmt.Errorf("participants must be two distinct accounts")
	}
	return nil
}

// ValidateContent enforces the message content bounds.
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return fmt.Errorf("message cannot exceed %d characters", MaxMessageLength)
	}
	return nil
}
