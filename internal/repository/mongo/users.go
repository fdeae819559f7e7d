package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/YOGESHBOTCHA965/W/internal/core/domain"
	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/repository"
)

const (
	fieldEmail          = "emailId"
	fieldPassword       = "password"
	fieldLoginAttempts  = "loginAttempts"
	fieldLockUntil      = "lockUntil"
	fieldRefreshToken   = "refreshToken"
	fieldResetOTP       = "resetOtp"
	fieldResetOTPExpiry = "resetOtpExpiry"
	fieldUpdatedAt      = "updatedAt"
)

// userDocument is the stored shape of a user.
type userDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	FirstName        string             `bson:"firstName"`
	LastName         string             `bson:"lastName"`
	DOB              string             `bson:"dob"`
	Gender           string             `bson:"gender"`
	ContactNo        string             `bson:"contactNo"`
	Email            string             `bson:"emailId"`
	Password         string             `bson:"password"`
	SecurityQuestion string             `bson:"securityQuestion"`
	SecurityAnswer   string             `bson:"securityAnswer"`
	LoginAttempts    int                `bson:"loginAttempts"`
	LockUntil        *time.Time         `bson:"lockUntil,omitempty"`
	RefreshToken     *string            `bson:"refreshToken,omitempty"`
	ResetOTP         *string            `bson:"resetOtp,omitempty"`
	ResetOTPExpiry   *time.Time         `bson:"resetOtpExpiry,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

// UserRepository implements port.UserRepository on a MongoDB collection.
// Each mutation is a single-document update, so MongoDB's document atomicity
// is all the concurrency control it needs.
type UserRepository struct {
	coll *mongo.Collection
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository wraps the users collection.
func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

// EnsureIndexes creates the unique email index. Safe to call on every start.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldEmail, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// Ping reports whether the backing deployment answers.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	out := doc.toDomain()
	return &out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: fieldEmail, Value: email}})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	out := doc.toDomain()
	return &out, nil
}

func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, rule domain.LockoutRule) (domain.LockoutState, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.LockoutState{}, repository.ErrNotFound
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: fieldLoginAttempts, Value: 1}, {Key: fieldLockUntil, Value: 1}})

	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, failedLoginPipeline(now, rule), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.LockoutState{}, repository.ErrNotFound
		}
		return domain.LockoutState{}, fmt.Errorf("record failed login: %w", err)
	}

	return domain.LockoutState{LoginAttempts: doc.LoginAttempts, LockUntil: doc.LockUntil}, nil
}

func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id string, refreshHash string, now time.Time) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldLoginAttempts, Value: 0},
			{Key: fieldRefreshToken, Value: refreshHash},
			{Key: fieldUpdatedAt, Value: now},
		}},
		{Key: "$unset", Value: bson.D{{Key: fieldLockUntil, Value: ""}}},
	}
	return r.updateByID(ctx, id, update, "record successful login")
}

func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id string, expected string, next string, now time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.coll.UpdateOne(ctx, swapRefreshFilter(oid, expected), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldRefreshToken, Value: next},
			{Key: fieldUpdatedAt, Value: now},
		}},
	})
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, id string, now time.Time) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: now}}},
		{Key: "$unset", Value: bson.D{{Key: fieldRefreshToken, Value: ""}}},
	}
	return r.updateByID(ctx, id, update, "clear refresh token")
}

func (r *UserRepository) SetResetOTP(ctx context.Context, id string, hash string, expiresAt time.Time, now time.Time) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldResetOTP, Value: hash},
			{Key: fieldResetOTPExpiry, Value: expiresAt},
			{Key: fieldUpdatedAt, Value: now},
		}},
	}
	return r.updateByID(ctx, id, update, "set reset otp")
}

func (r *UserRepository) ConsumeResetOTP(ctx context.Context, id string, now time.Time) (*domain.PendingOTP, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: now}}},
		{Key: "$unset", Value: bson.D{
			{Key: fieldResetOTP, Value: ""},
			{Key: fieldResetOTPExpiry, Value: ""},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: fieldResetOTP, Value: 1}, {Key: fieldResetOTPExpiry, Value: 1}})

	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, pendingOTPFilter(oid), update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume reset otp: %w", err)
	}
	if doc.ResetOTP == nil {
		return nil, nil
	}

	pending := &domain.PendingOTP{Hash: *doc.ResetOTP}
	if doc.ResetOTPExpiry != nil {
		pending.ExpiresAt = *doc.ResetOTPExpiry
	}
	return pending, nil
}

func (r *UserRepository) ResetPassword(ctx context.Context, id string, passwordHash string, now time.Time) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldPassword, Value: passwordHash},
			{Key: fieldUpdatedAt, Value: now},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: fieldRefreshToken, Value: ""},
			{Key: fieldResetOTP, Value: ""},
			{Key: fieldResetOTPExpiry, Value: ""},
		}},
	}
	return r.updateByID(ctx, id, update, "reset password")
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.D, op string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// failedLoginPipeline increments the counter server side. An expired lock restarts
// the count at 1 and is cleared; reaching the threshold sets a fresh lock unless one is
// still running.
// The second stage sees the counter written by the first.
func failedLoginPipeline(now time.Time, rule domain.LockoutRule) mongo.Pipeline {
	lockExpired := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$" + fieldLockUntil}}, "date"}}},
		bson.D{{Key: "$lte", Value: bson.A{"$" + fieldLockUntil, now}}},
	}}}

	lockActive := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$" + fieldLockUntil}}, "date"}}},
		bson.D{{Key: "$gt", Value: bson.A{"$" + fieldLockUntil, now}}},
	}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: fieldLoginAttempts, Value: bson.D{{Key: "$cond", Value: bson.A{
				lockExpired,
				1,
				bson.D{{Key: "$add", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$" + fieldLoginAttempts, 0}}},
					1,
				}}},
			}}}},
			{Key: fieldLockUntil, Value: bson.D{{Key: "$cond", Value: bson.A{lockExpired, nil, "$" + fieldLockUntil}}}},
			{Key: fieldUpdatedAt, Value: now},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: fieldLockUntil, Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$not", Value: bson.A{lockActive}}},
					bson.D{{Key: "$gte", Value: bson.A{"$" + fieldLoginAttempts, rule.MaxAttempts}}},
				}}},
				now.Add(rule.LockFor),
				"$" + fieldLockUntil,
			}}}},
		}}},
	}
}

func swapRefreshFilter(id primitive.ObjectID, expected string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: fieldRefreshToken, Value: expected},
	}
}

func pendingOTPFilter(id primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: fieldResetOTP, Value: bson.D{{Key: "$type", Value: "string"}}},
	}
}

func toDocument(u domain.User) userDocument {
	return userDocument{
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		DOB:              u.DOB,
		Gender:           string(u.Gender),
		ContactNo:        u.ContactNo,
		Email:            u.Email,
		Password:         u.PasswordHash,
		SecurityQuestion: u.SecurityQuestion,
		SecurityAnswer:   u.SecurityAnswerHash,
		LoginAttempts:    u.LoginAttempts,
		LockUntil:        u.LockUntil,
		RefreshToken:     u.RefreshTokenHash,
		ResetOTP:         u.ResetOTPHash,
		ResetOTPExpiry:   u.ResetOTPExpiry,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:                 d.ID.Hex(),
		FirstName:          d.FirstName,
		LastName:           d.LastName,
		DOB:                d.DOB,
		Gender:             domain.Gender(d.Gender),
		ContactNo:          d.ContactNo,
		Email:              d.Email,
		PasswordHash:       d.Password,
		SecurityQuestion:   d.SecurityQuestion,
		SecurityAnswerHash: d.SecurityAnswer,
		LoginAttempts:      d.LoginAttempts,
		LockUntil:          d.LockUntil,
		RefreshTokenHash:   d.RefreshToken,
		ResetOTPHash:       d.ResetOTP,
		ResetOTPExpiry:     d.ResetOTPExpiry,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}
