package service

import (
	"context"
	"sort"
	"time"

	chatmodel "PChat/module/chat/model"
	usermodel "PChat/module/user/model"
	"PChat/tools/errs"
	"PChat/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationView is the listing shape: the conversation plus the peer's
// profile and the latest message, ready for the sidebar.
type ConversationView struct {
	Conversation chatmodel.Conversation `json:"conversation"`
	OtherUser    *usermodel.User        `json:"otherUser,omitempty"`
	LastMessage  *chatmodel.Message     `json:"lastMessage,omitempty"`
}

func pairKey(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// CreateOrGet returns the conversation between the two users, creating it on
// first contact. Created reports whether this call made it.
func CreateOrGet(ctx context.Context, userID, otherUserID string) (conv *chatmodel.Conversation, created bool, err error) {
	if otherUserID == "" || otherUserID == userID {
		return nil, false, errs.ErrArgs
	}
	if _, err := findUser(ctx, otherUserID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, errs.ErrArgs
		}
		return nil, false, errors.Wrap(err, "find other user")
	}

	coll, err := chatmodel.ConversationCollection()
	if err != nil {
		return nil, false, err
	}

	pair := pairKey(userID, otherUserID)
	filter := bson.M{"member_ids": bson.M{"$all": pair, "$size": 2}}

	var existing chatmodel.Conversation
	err = coll.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, errors.Wrap(err, "find conversation")
	}

	now := time.Now()
	c := chatmodel.Conversation{
		ConversationID: ids.GenerateString(),
		MemberIDs:      pair,
		CreateTime:     now,
		UpdateTime:     now,
	}
	if _, err := coll.InsertOne(ctx, c); err != nil {
		return nil, false, errors.Wrap(err, "insert conversation")
	}
	return &c, true, nil
}

// ListForUser returns the caller's conversations, most recently active
// first, each with peer profile and last message attached.
func ListForUser(ctx context.Context, userID string) ([]ConversationView, error) {
	coll, err := chatmodel.ConversationCollection()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx,
		bson.M{"member_ids": userID},
		options.Find().SetSort(bson.D{{Key: "update_time", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer cur.Close(ctx)

	var convs []chatmodel.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := ConversationView{Conversation: conv}

		if otherID := otherMember(conv, userID); otherID != "" {
			if u, err := findUser(ctx, otherID); err == nil {
				view.OtherUser = u
			} else if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, errors.Wrap(err, "load other user")
			}
		}

		last, err := lastMessage(ctx, conv.ConversationID)
		if err != nil {
			return nil, err
		}
		view.LastMessage = last

		views = append(views, view)
	}
	return views, nil
}

// IsMember reports whether the user belongs to the conversation. This is the
// authority the request gate and the relay hub both consult.
func IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	coll, err := chatmodel.ConversationCollection()
	if err != nil {
		return false, err
	}
	count, err := coll.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"member_ids":      userID,
	})
	if err != nil {
		return false, errors.Wrap(err, "check membership")
	}
	return count > 0, nil
}

// Get returns ErrConversationGone both when the conversation does not exist
// and when the caller is not a member; the two cases are indistinguishable
// to the client.
func Get(ctx context.Context, userID, conversationID string) (*chatmodel.Conversation, error) {
	coll, err := chatmodel.ConversationCollection()
	if err != nil {
		return nil, err
	}
	var conv chatmodel.Conversation
	err = coll.FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"member_ids":      userID,
	}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrConversationGone
	}
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	return &conv, nil
}

func otherMember(conv chatmodel.Conversation, userID string) string {
	for _, id := range conv.MemberIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

func findUser(ctx context.Context, userID string) (*usermodel.User, error) {
	coll, err := usermodel.Collection()
	if err != nil {
		return nil, err
	}
	var u usermodel.User
	if err := coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func lastMessage(ctx context.Context, conversationID string) (*chatmodel.Message, error) {
	coll, err := chatmodel.MessageCollection()
	if err != nil {
		return nil, err
	}
	var m chatmodel.Message
	err = coll.FindOne(ctx,
		bson.M{"conversation_id": conversationID},
		options.FindOne().SetSort(bson.D{{Key: "create_time", Value: -1}}),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load last message")
	}
	return &m, nil
}

func touchConversation(ctx context.Context, conversationID string, at time.Time) error {
	coll, err := chatmodel.ConversationCollection()
	if err != nil {
		return err
	}
	_, err = coll.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"update_time": at}},
	)
	return errors.Wrap(err, "touch conversation")
}
