package model

import (
	"context"
	"time"

	mgo "PChat/service/mgo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Message is one chat message. Sender identity is denormalized so history
// renders without a join; either Text or ImageURL may be empty, never both.
type Message struct {
	MessageID      string    `bson:"message_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	SenderName     string    `bson:"sender_name" json:"senderName"`
	Text           string    `bson:"text,omitempty" json:"text,omitempty"`
	ImageURL       string    `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	CreateTime     time.Time `bson:"create_time" json:"createdAt"`
}

func (Message) GetTableName() string {
	return "message"
}

// MessageCollection returns mgo.ErrNotReady while mongo is down.
func MessageCollection() (*mongo.Collection, error) {
	db, err := mgo.GetDB()
	if err != nil {
		return nil, err
	}
	return db.Collection(Message{}.GetTableName()), nil
}

// EnsureMessageIndexes backs the history query: by conversation, in send
// order.
func EnsureMessageIndexes(ctx context.Context) error {
	coll, err := MessageCollection()
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "create_time", Value: 1}},
	})
	return err
}
