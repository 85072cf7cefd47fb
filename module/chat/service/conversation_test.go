package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	chatmodel "PChat/module/chat/model"
	"PChat/service/mgo"
	"PChat/tools/errs"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := pairKey("u2", "u1")
	b := pairKey("u1", "u2")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("pairKey not stable: %v vs %v", a, b)
	}
	if !reflect.DeepEqual(a, []string{"u1", "u2"}) {
		t.Fatalf("pairKey = %v", a)
	}
}

func TestOtherMember(t *testing.T) {
	conv := chatmodel.Conversation{MemberIDs: []string{"u1", "u2"}}
	if got := otherMember(conv, "u1"); got != "u2" {
		t.Fatalf("otherMember = %q, want u2", got)
	}
	if got := otherMember(conv, "u2"); got != "u1" {
		t.Fatalf("otherMember = %q, want u1", got)
	}
	if got := otherMember(conv, "u3"); got != "u1" {
		t.Fatalf("otherMember for outsider = %q, want first member", got)
	}
}

// Self and empty targets must be rejected before any store access.
func TestCreateOrGetRejectsBadTarget(t *testing.T) {
	for _, other := range []string{"", "u1"} {
		if _, _, err := CreateOrGet(context.Background(), "u1", other); err != errs.ErrArgs {
			t.Fatalf("CreateOrGet(%q) err = %v, want ErrArgs", other, err)
		}
	}
}

// With no mongo connection the store helpers must return ErrNotReady, never
// panic; handlers turn it into a 500 and the relay denies the join.
func TestStoreAccessErrorsWhenMongoDown(t *testing.T) {
	ctx := context.Background()

	if _, err := IsMember(ctx, "u1", "conv1"); !errors.Is(err, mgo.ErrNotReady) {
		t.Fatalf("IsMember err = %v, want ErrNotReady", err)
	}
	if _, err := Get(ctx, "u1", "conv1"); !errors.Is(err, mgo.ErrNotReady) {
		t.Fatalf("Get err = %v, want ErrNotReady", err)
	}
	if _, err := ListMessages(ctx, "u1", "conv1"); !errors.Is(err, mgo.ErrNotReady) {
		t.Fatalf("ListMessages err = %v, want ErrNotReady", err)
	}
	if _, err := ListForUser(ctx, "u1"); !errors.Is(err, mgo.ErrNotReady) {
		t.Fatalf("ListForUser err = %v, want ErrNotReady", err)
	}
}

func TestAppendMessageRequiresContent(t *testing.T) {
	_, err := AppendMessage(context.Background(), AppendMessageParams{
		ConversationID: "c1",
		SenderID:       "u1",
		SenderName:     "Alice",
		Text:           "   ",
	})
	if err != errs.ErrMessageEmpty {
		t.Fatalf("err = %v, want ErrMessageEmpty", err)
	}
}
