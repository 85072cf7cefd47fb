package service

import (
	"context"
	"strings"
	"time"

	chatmodel "PChat/module/chat/model"
	"PChat/tools/errs"
	"PChat/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AppendMessageParams struct {
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	ImageURL       string
}

// AppendMessage persists a message after re-checking the sender's
// membership. Non-members get ErrConversationGone, same as for a missing
// conversation.
func AppendMessage(ctx context.Context, in AppendMessageParams) (*chatmodel.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.ImageURL == "" {
		return nil, errs.ErrMessageEmpty
	}

	if _, err := Get(ctx, in.SenderID, in.ConversationID); err != nil {
		return nil, err
	}

	coll, err := chatmodel.MessageCollection()
	if err != nil {
		return nil, err
	}
	m := chatmodel.Message{
		MessageID:      ids.GenerateString(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		Text:           text,
		ImageURL:       in.ImageURL,
		CreateTime:     time.Now(),
	}
	if _, err := coll.InsertOne(ctx, m); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	if err := touchConversation(ctx, in.ConversationID, m.CreateTime); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns the conversation's history in send order. Membership
// is enforced the same way as AppendMessage.
func ListMessages(ctx context.Context, userID, conversationID string) ([]chatmodel.Message, error) {
	if _, err := Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	coll, err := chatmodel.MessageCollection()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer cur.Close(ctx)

	msgs := make([]chatmodel.Message, 0)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode messages")
	}
	return msgs, nil
}
