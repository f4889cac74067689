package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"books4all-auth/internal/domain"
)

const UsersCollection = "users"

// userDocument es la forma en bson de un usuario en la coleccion users.
type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name,omitempty"`
	Password     string             `bson:"password,omitempty"`
	OTP          string             `bson:"otp,omitempty"`
	OTPExpiresAt *time.Time         `bson:"otpExpiresAt,omitempty"`
	Verified     bool               `bson:"verified"`
	Provider     string             `bson:"provider,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		DisplayName:  d.Name,
		PasswordHash: d.Password,
		OTP:          d.OTP,
		OTPExpiresAt: d.OTPExpiresAt,
		Verified:     d.Verified,
		Provider:     d.Provider,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoUserRepository implementa UserRepository sobre MongoDB.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository asegura el indice unico por email y devuelve el repositorio.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	col := db.Collection(UsersCollection)
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoUserRepository{col: col}, nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var doc userDocument
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

func (r *MongoUserRepository) UpsertOTP(ctx context.Context, email, otp string, expiresAt *time.Time) (domain.User, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc userDocument
	err := r.col.FindOneAndUpdate(ctx, bson.M{"email": email}, otpUpdate(otp, expiresAt, time.Now().UTC()), opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Dos upserts concurrentes del mismo email: el perdedor pasa a update.
		err = r.col.FindOneAndUpdate(ctx, bson.M{"email": email}, otpUpdate(otp, expiresAt, time.Now().UTC()), opts).Decode(&doc)
	}
	if err != nil {
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

func (r *MongoUserRepository) FinalizeRegistration(ctx context.Context, id, passwordHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.col.UpdateByID(ctx, oid, finalizeUpdate(passwordHash, time.Now().UTC()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func otpUpdate(otp string, expiresAt *time.Time, now time.Time) bson.M {
	set := bson.M{
		"otp":       otp,
		"updatedAt": now,
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"verified":  false,
			"provider":  domain.ProviderCredentials,
			"createdAt": now,
		},
	}
	if expiresAt != nil {
		set["otpExpiresAt"] = *expiresAt
	} else {
		update["$unset"] = bson.M{"otpExpiresAt": ""}
	}
	return update
}

func finalizeUpdate(passwordHash string, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"password":  passwordHash,
			"verified":  true,
			"otp":       "",
			"updatedAt": now,
		},
		"$unset": bson.M{"otpExpiresAt": ""},
	}
}
