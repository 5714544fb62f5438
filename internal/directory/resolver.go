package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// ProfileResolver maps an account reference to its display profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, ref models.AccountRef) (*models.Profile, error)
}

// MongoDirectory resolves profiles from the marketplace's user and
// recruiter collections, dispatching on the reference kind. Only display
// fields are projected.
type MongoDirectory struct {
	users      *mongo.Collection
	recruiters *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		users:      db.Collection("users"),
		recruiters: db.Collection("recruiters"),
	}
}

func (d *MongoDirectory) Resolve(ctx context.Context, ref models.AccountRef) (*models.Profile, error) {
	var (
		coll       *mongo.Collection
		projection bson.M
	)
	switch ref.Kind {
	case models.KindUser:
		coll = d.users
		projection = bson.M{"name": 1, "email": 1}
	case models.KindRecruiter:
		coll = d.recruiters
		projection = bson.M{"name": 1, "email": 1, "companyName": 1}
	default:
		return nil, fmt.Errorf("unknown account kind %q", ref.Kind)
	}

	var p models.Profile
	err := coll.FindOne(ctx, bson.M{"_id": ref.AccountID},
		options.FindOne().SetProjection(projection)).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	p.Kind = ref.Kind
	return &p, nil
}
