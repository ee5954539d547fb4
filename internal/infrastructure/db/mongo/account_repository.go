package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
)

const accountCollection = "accounts"

// MongoAccountRepository persists accounts in the accounts collection.
// Refresh-token rotation is a single conditional UpdateOne so two
// concurrent rotations of the same token cannot both succeed.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{coll: db.Collection(accountCollection)}
}

type mongoAccount struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Username             string             `bson:"username"`
	Email                string             `bson:"email"`
	FullName             string             `bson:"fullname,omitempty"`
	PasswordHash         string             `bson:"password_hash"`
	RefreshToken         string             `bson:"refresh_token,omitempty"`
	PasswordResetToken   string             `bson:"password_reset_token,omitempty"`
	PasswordResetExpires int64              `bson:"password_reset_expires,omitempty"`
	Role                 string             `bson:"role"`
	CreatedAt            int64              `bson:"created_at"`
	UpdatedAt            int64              `bson:"updated_at"`
}

// EnsureIndexes creates the unique indexes login correctness depends on.
// Emails are stored lowercased, so a plain unique index gives
// case-insensitive uniqueness.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	doc := mongoAccount{
		Username:     account.Username,
		Email:        account.Email,
		FullName:     account.FullName,
		PasswordHash: account.PasswordHash,
		Role:         account.Role,
		CreatedAt:    account.CreatedAt.Unix(),
		UpdatedAt:    account.UpdatedAt.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	oid, _ := res.InsertedID.(primitive.ObjectID)
	return r.FindByID(ctx, oid.Hex())
}

func (r *MongoAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoAccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": domain.NormalizeEmail(identifier)},
	}})
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *MongoAccountRepository) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{
		"password_reset_token":   hash,
		"password_reset_expires": bson.M{"$gt": now.Unix()},
	})
}

func (r *MongoAccountRepository) SetRefreshToken(ctx context.Context, id string, token string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	update := bson.M{"$set": bson.M{"updated_at": time.Now().Unix()}}
	if token == "" {
		update["$unset"] = bson.M{"refresh_token": ""}
	} else {
		update["$set"].(bson.M)["refresh_token"] = token
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// CompareAndSwapRefreshToken filters on both _id and the expected token
// value; Mongo applies the update atomically per document, which is the
// rotation guard against concurrent refresh calls.
func (r *MongoAccountRepository) CompareAndSwapRefreshToken(ctx context.Context, id string, expected, next string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrAccountNotFound
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "refresh_token": expected},
		bson.M{"$set": bson.M{"refresh_token": next, "updated_at": time.Now().Unix()}},
	)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoAccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, clearSession bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	update := bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now().Unix()}}
	if clearSession {
		update["$unset"] = bson.M{"refresh_token": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountRepository) SetResetToken(ctx context.Context, id string, hash string, expires time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password_reset_token":   hash,
		"password_reset_expires": expires.Unix(),
		"updated_at":             time.Now().Unix(),
	}})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountRepository) ClearResetToken(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$unset": bson.M{"password_reset_token": "", "password_reset_expires": ""},
		"$set":   bson.M{"updated_at": time.Now().Unix()},
	})
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) ConsumeResetToken(ctx context.Context, id string, passwordHash string, clearSession bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	unset := bson.M{"password_reset_token": "", "password_reset_expires": ""}
	if clearSession {
		unset["refresh_token"] = ""
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": time.Now().Unix()},
		"$unset": unset,
	})
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var ma mongoAccount
	if err := r.coll.FindOne(ctx, filter).Decode(&ma); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return ma.toDomain(), nil
}

func (ma *mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:                   ma.ID.Hex(),
		Username:             ma.Username,
		Email:                ma.Email,
		FullName:             ma.FullName,
		PasswordHash:         ma.PasswordHash,
		RefreshToken:         ma.RefreshToken,
		PasswordResetToken:   ma.PasswordResetToken,
		PasswordResetExpires: unixToTime(ma.PasswordResetExpires),
		Role:                 ma.Role,
		CreatedAt:            unixToTime(ma.CreatedAt),
		UpdatedAt:            unixToTime(ma.UpdatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
