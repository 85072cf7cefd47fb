package model

import (
	"context"
	"time"

	mgo "PChat/service/mgo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Conversation is a private channel between exactly two users. MemberIDs is
// kept sorted so the same pair always maps to the same document.
type Conversation struct {
	ConversationID string    `bson:"conversation_id" json:"id"`
	MemberIDs      []string  `bson:"member_ids" json:"memberIds"`
	CreateTime     time.Time `bson:"create_time" json:"createdAt"`
	UpdateTime     time.Time `bson:"update_time" json:"updatedAt"`
}

func (Conversation) GetTableName() string {
	return "conversation"
}

// ConversationCollection returns mgo.ErrNotReady while mongo is down.
func ConversationCollection() (*mongo.Collection, error) {
	db, err := mgo.GetDB()
	if err != nil {
		return nil, err
	}
	return db.Collection(Conversation{}.GetTableName()), nil
}

// EnsureConversationIndexes backs the pair lookup and the per-user listing.
func EnsureConversationIndexes(ctx context.Context) error {
	coll, err := ConversationCollection()
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "member_ids", Value: 1}},
		},
	})
	return err
}
