package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCollection is the MongoDB collection holding user documents.
const UsersCollection = "users"

type userDocument struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	WalletAddress    string               `bson:"walletAddress"`
	Email            string               `bson:"email,omitempty"`
	Name             string               `bson:"name"`
	UserType         string               `bson:"userType"`
	IsVerified       bool                 `bson:"isVerified"`
	IsAdmin          bool                 `bson:"isAdmin"`
	Profile          profileDocument      `bson:"profile"`
	Preferences      preferencesDocument  `bson:"preferences"`
	CredentialsOwned []credentialDocument `bson:"credentialsOwned"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

type profileDocument struct {
	Bio       string   `bson:"bio,omitempty"`
	Avatar    string   `bson:"avatar,omitempty"`
	LinkedIn  string   `bson:"linkedin,omitempty"`
	Website   string   `bson:"website,omitempty"`
	Documents []string `bson:"documents,omitempty"`
}

type preferencesDocument struct {
	Notifications bool `bson:"notifications"`
	PublicProfile bool `bson:"publicProfile"`
}

type credentialDocument struct {
	TokenID        string    `bson:"tokenId"`
	Issuer         string    `bson:"issuer"`
	CredentialType string    `bson:"credentialType"`
	IssueDate      time.Time `bson:"issueDate"`
	OnChain        bool      `bson:"onChain"`
}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	users *mongo.Collection
	now   func() time.Time
}

// NewMongoRepository builds a Mongo-backed user repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{users: db.Collection(UsersCollection), now: time.Now}
}

// EnsureIndexes creates the uniqueness and query indexes. Email uniqueness
// only applies to documents that have an email.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "walletAddress", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("walletAddress_unique"),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique").
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{
			Keys:    bson.D{{Key: "userType", Value: 1}, {Key: "isVerified", Value: 1}},
			Options: options.Index().SetName("userType_isVerified"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// Create inserts a new user document.
func (r *MongoRepository) Create(ctx context.Context, user User) (User, error) {
	now := r.now().UTC()
	user.WalletAddress = NormalizeWallet(user.WalletAddress)
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now
	if user.CredentialsOwned == nil {
		user.CredentialsOwned = []CredentialOwnership{}
	}

	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return User{}, mapMongoError(err)
	}
	return doc.toUser(), nil
}

// FindByID fetches a user by its ObjectID hex string.
func (r *MongoRepository) FindByID(ctx context.Context, id string) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// FindByWalletAddress fetches a user by lowercase wallet address.
func (r *MongoRepository) FindByWalletAddress(ctx context.Context, wallet string) (User, error) {
	return r.findOne(ctx, bson.D{{Key: "walletAddress", Value: NormalizeWallet(wallet)}})
}

// FindByEmail fetches a user by lowercase email.
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

// Update applies a partial $set and returns the updated document.
func (r *MongoRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	set := patchToSet(patch)
	set["updatedAt"] = r.now().UTC()
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

// Delete hard-deletes a user.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddCredential appends an ownership record.
func (r *MongoRepository) AddCredential(ctx context.Context, id string, cred CredentialOwnership) (User, error) {
	return r.updateOne(ctx, id, bson.M{
		"$push": bson.M{"credentialsOwned": credentialDocument(cred)},
		"$set":  bson.M{"updatedAt": r.now().UTC()},
	})
}

// RemoveCredential removes every ownership record with the given token id.
func (r *MongoRepository) RemoveCredential(ctx context.Context, id, tokenID string) (User, error) {
	return r.updateOne(ctx, id, bson.M{
		"$pull": bson.M{"credentialsOwned": bson.M{"tokenId": tokenID}},
		"$set":  bson.M{"updatedAt": r.now().UTC()},
	})
}

// FindVerifiedInstitutions lists verified institution accounts.
func (r *MongoRepository) FindVerifiedInstitutions(ctx context.Context) ([]User, error) {
	filter := bson.D{
		{Key: "userType", Value: string(UserTypeInstitution)},
		{Key: "isVerified", Value: true},
	}
	cur, err := r.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toUser())
	}
	return out, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return User{}, mapMongoError(err)
	}
	return doc.toUser(), nil
}

func (r *MongoRepository) updateOne(ctx context.Context, id string, update bson.M) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc); err != nil {
		return User{}, mapMongoError(err)
	}
	return doc.toUser(), nil
}

func patchToSet(p Patch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = NormalizeEmail(*p.Email)
	}
	if p.IsVerified != nil {
		set["isVerified"] = *p.IsVerified
	}
	if pp := p.Profile; pp != nil {
		if pp.Bio != nil {
			set["profile.bio"] = *pp.Bio
		}
		if pp.Avatar != nil {
			set["profile.avatar"] = *pp.Avatar
		}
		if pp.LinkedIn != nil {
			set["profile.linkedin"] = *pp.LinkedIn
		}
		if pp.Website != nil {
			set["profile.website"] = *pp.Website
		}
		if pp.Documents != nil {
			set["profile.documents"] = *pp.Documents
		}
	}
	if pp := p.Preferences; pp != nil {
		if pp.Notifications != nil {
			set["preferences.notifications"] = *pp.Notifications
		}
		if pp.PublicProfile != nil {
			set["preferences.publicProfile"] = *pp.PublicProfile
		}
	}
	return set
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func toDocument(u User) userDocument {
	creds := make([]credentialDocument, 0, len(u.CredentialsOwned))
	for _, c := range u.CredentialsOwned {
		creds = append(creds, credentialDocument(c))
	}
	return userDocument{
		WalletAddress:    u.WalletAddress,
		Email:            u.Email,
		Name:             u.Name,
		UserType:         string(u.UserType),
		IsVerified:       u.IsVerified,
		IsAdmin:          u.IsAdmin,
		Profile:          profileDocument(u.Profile),
		Preferences:      preferencesDocument(u.Preferences),
		CredentialsOwned: creds,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (d userDocument) toUser() User {
	creds := make([]CredentialOwnership, 0, len(d.CredentialsOwned))
	for _, c := range d.CredentialsOwned {
		creds = append(creds, CredentialOwnership(c))
	}
	return User{
		ID:               d.ID.Hex(),
		WalletAddress:    d.WalletAddress,
		Email:            d.Email,
		Name:             d.Name,
		UserType:         UserType(d.UserType),
		IsVerified:       d.IsVerified,
		IsAdmin:          d.IsAdmin,
		Profile:          Profile(d.Profile),
		Preferences:      Preferences(d.Preferences),
		CredentialsOwned: creds,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}
