package model

import (
	"context"
	"time"

	mgo "PChat/service/mgo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User is the account master record. The password never leaves this package
// as anything but a bcrypt hash.
type User struct {
	UserID       string    `bson:"user_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreateTime   time.Time `bson:"create_time" json:"createdAt"`
	UpdateTime   time.Time `bson:"update_time" json:"-"`
}

func (User) GetTableName() string {
	return "user"
}

// Collection returns mgo.ErrNotReady while the mongo connection is down.
func Collection() (*mongo.Collection, error) {
	db, err := mgo.GetDB()
	if err != nil {
		return nil, err
	}
	return db.Collection(User{}.GetTableName()), nil
}

// EnsureIndexes creates the unique email index. Call once at startup, after
// mongo is ready.
func EnsureIndexes(ctx context.Context) error {
	coll, err := Collection()
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
