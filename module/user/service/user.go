package service

import (
	"context"
	"strings"
	"time"

	usermodel "PChat/module/user/model"
	"PChat/tools/errs"
	"PChat/tools/ids"
	"PChat/tools/security"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const minPasswordLen = 6

// Session is what a successful register or login hands back to the handler.
type Session struct {
	User      usermodel.User
	Token     string
	ExpiresAt time.Time
}

type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and signs its first session token. A
// duplicate email surfaces as ErrUserExists whether it is caught by the
// pre-check or by the unique index.
func Register(ctx context.Context, jwt security.Options, in RegisterParams) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, errs.ErrArgs
	}
	if len(in.Password) < minPasswordLen {
		return nil, errs.ErrArgs
	}

	coll, err := usermodel.Collection()
	if err != nil {
		return nil, err
	}
	count, err := coll.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return nil, errors.Wrap(err, "count users by email")
	}
	if count > 0 {
		return nil, errs.ErrUserExists
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	now := time.Now()
	u := usermodel.User{
		UserID:       ids.GenerateString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreateTime:   now,
		UpdateTime:   now,
	}
	if _, err := coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrUserExists
		}
		return nil, errors.Wrap(err, "insert user")
	}

	return issueSession(jwt, u)
}

// Login verifies credentials. A missing account and a wrong password fail
// identically so the response does not leak which emails are registered.
func Login(ctx context.Context, jwt security.Options, in LoginParams) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, errs.ErrArgs
	}

	u, err := FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrLoginFailed
		}
		return nil, errors.Wrap(err, "find user by email")
	}
	if !credentialsMatch(u, in.Password) {
		return nil, errs.ErrLoginFailed
	}

	return issueSession(jwt, *u)
}

// credentialsMatch checks a login attempt against the stored bcrypt hash.
func credentialsMatch(u *usermodel.User, password string) bool {
	return security.VerifyPassword(password, u.PasswordHash)
}

func issueSession(jwt security.Options, u usermodel.User) (*Session, error) {
	token, exp, err := security.Issue(jwt, u.UserID, u.Email, u.Name)
	if err != nil {
		return nil, errors.Wrap(err, "sign token")
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

// FindByEmail returns mongo.ErrNoDocuments when the account does not exist.
func FindByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	coll, err := usermodel.Collection()
	if err != nil {
		return nil, err
	}
	var u usermodel.User
	if err := coll.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByID returns mongo.ErrNoDocuments when the account does not exist.
func FindByID(ctx context.Context, userID string) (*usermodel.User, error) {
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

// List returns every account except the caller's, sorted by name. This backs
// the contact picker, so the full directory is intentional.
func List(ctx context.Context, exceptUserID string) ([]usermodel.User, error) {
	coll, err := usermodel.Collection()
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx,
		bson.M{"user_id": bson.M{"$ne": exceptUserID}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer cur.Close(ctx)

	users := make([]usermodel.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return users, nil
}
