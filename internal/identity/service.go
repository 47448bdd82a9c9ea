package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/validation"
)

const (
	msgUserNotFound  = "User not found"
	msgEmailInUse    = "Email already in use"
	msgInvalidWallet = "Invalid wallet address format"
	msgInvalidEmail  = "Invalid email format"
)

var profileMessages = map[string]string{
	"name":             "Name must be between 2 and 100 characters",
	"email":            msgInvalidEmail,
	"profile.bio":      "Bio must be at most 500 characters",
	"profile.avatar":   "Avatar must be a valid URL",
	"profile.linkedin": "LinkedIn must be a valid URL",
	"profile.website":  "Website must be a valid URL",
}

var credentialMessages = map[string]string{
	"tokenId":        "Token ID is required",
	"credentialType": "Credential type is required",
	"issuer":         msgInvalidWallet,
}

// ProfileUpdate is the client-supplied partial profile update.
type ProfileUpdate struct {
	Name        *string              `json:"name" validate:"omitnil,min=2,max=100"`
	Email       *string              `json:"email" validate:"omitnil,email_basic"`
	Profile     *ProfileFieldsUpdate `json:"profile"`
	Preferences *PreferencesUpdate   `json:"preferences"`
}

// ProfileFieldsUpdate updates individual profile fields. An empty URL clears
// the field.
type ProfileFieldsUpdate struct {
	Bio       *string   `json:"bio" validate:"omitnil,max=500"`
	Avatar    *string   `json:"avatar" validate:"omitnil,web_url"`
	LinkedIn  *string   `json:"linkedin" validate:"omitnil,web_url"`
	Website   *string   `json:"website" validate:"omitnil,web_url"`
	Documents *[]string `json:"documents"`
}

// PreferencesUpdate updates individual preference switches.
type PreferencesUpdate struct {
	Notifications *bool `json:"notifications"`
	PublicProfile *bool `json:"publicProfile"`
}

// CredentialInput describes a credential token being recorded for a holder.
type CredentialInput struct {
	TokenID        string     `json:"tokenId" validate:"required,max=200"`
	Issuer         string     `json:"issuer" validate:"omitempty,wallet"`
	CredentialType string     `json:"credentialType" validate:"required,max=100"`
	IssueDate      *time.Time `json:"issueDate"`
	OnChain        bool       `json:"onChain"`
}

// Availability reports whether an identifier is still free.
type Availability struct {
	Available  bool `json:"available"`
	Registered bool `json:"registered"`
}

// Service manages the user lifecycle on top of a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new identity service. A nil validator gets the
// project default.
func NewService(repo Repository, validate *validator.Validate) *Service {
	if validate == nil {
		validate = validation.New()
	}
	return &Service{repo: repo, validate: validate, now: time.Now}
}

// FindOrCreateByWallet returns the user owning wallet, creating an unverified
// account with default settings on first sight. created reports whether a new
// record was written.
func (s *Service) FindOrCreateByWallet(ctx context.Context, wallet, email string) (user User, created bool, err error) {
	wallet = NormalizeWallet(wallet)
	if !validation.IsWalletAddress(wallet) {
		return User{}, false, apperr.InvalidInput(msgInvalidWallet)
	}

	user, err = s.repo.FindByWalletAddress(ctx, wallet)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, apperr.Internal("failed to load user", err)
	}

	email = NormalizeEmail(email)
	if email != "" && !validation.IsEmail(email) {
		return User{}, false, apperr.InvalidInput(msgInvalidEmail)
	}
	if email != "" {
		if err := s.ensureEmailFree(ctx, email); err != nil {
			return User{}, false, err
		}
	}

	user, err = s.repo.Create(ctx, User{
		WalletAddress:    wallet,
		Email:            email,
		Name:             DefaultName(wallet),
		UserType:         UserTypeUser,
		Preferences:      DefaultPreferences(),
		CredentialsOwned: []CredentialOwnership{},
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent signup; report which key collided.
			if email != "" {
				if taken := s.ensureEmailFree(ctx, email); apperr.Is(taken, apperr.KindConflict) {
					return User{}, false, apperr.Wrap(apperr.KindConflict, msgEmailInUse, err)
				}
			}
			return User{}, false, apperr.Wrap(apperr.KindConflict, "User already exists", err)
		}
		return User{}, false, apperr.Internal("failed to create user", err)
	}
	return user, true, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict(msgEmailInUse)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return apperr.Internal("failed to check email", err)
	}
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	return user, mapLookupError(err)
}

// GetByWallet loads a user by wallet address.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (User, error) {
	wallet = NormalizeWallet(wallet)
	if !validation.IsWalletAddress(wallet) {
		return User{}, apperr.InvalidInput(msgInvalidWallet)
	}
	user, err := s.repo.FindByWalletAddress(ctx, wallet)
	return user, mapLookupError(err)
}

// MarkVerified flips isVerified to true for the wallet's owner. Already
// verified users are returned unchanged.
func (s *Service) MarkVerified(ctx context.Context, wallet string) (User, error) {
	user, err := s.GetByWallet(ctx, wallet)
	if err != nil {
		return User{}, err
	}
	if user.IsVerified {
		return user, nil
	}
	verified := true
	user, err = s.repo.Update(ctx, user.ID, Patch{IsVerified: &verified})
	return user, mapLookupError(err)
}

// UpdateProfile validates and applies a partial profile update for user id.
// Email must not belong to another user.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := s.validate.Struct(in); err != nil {
		return User{}, validationError(err, profileMessages)
	}

	if in.Email != nil {
		owner, err := s.repo.FindByEmail(ctx, *in.Email)
		switch {
		case err == nil && owner.ID != id:
			return User{}, apperr.Conflict(msgEmailInUse)
		case err != nil && !errors.Is(err, ErrNotFound):
			return User{}, apperr.Internal("failed to check email", err)
		}
	}

	patch := in.patch()
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	user, err := s.repo.Update(ctx, id, patch)
	if errors.Is(err, ErrDuplicate) {
		return User{}, apperr.Wrap(apperr.KindConflict, msgEmailInUse, err)
	}
	return user, mapLookupError(err)
}

// Delete hard-deletes the user.
func (s *Service) Delete(ctx context.Context, id string) error {
	return mapLookupError(s.repo.Delete(ctx, id))
}

// WalletAvailability reports whether a wallet address is unregistered.
func (s *Service) WalletAvailability(ctx context.Context, wallet string) (Availability, error) {
	wallet = NormalizeWallet(wallet)
	if !validation.IsWalletAddress(wallet) {
		return Availability{}, apperr.InvalidInput(msgInvalidWallet)
	}
	_, err := s.repo.FindByWalletAddress(ctx, wallet)
	return availability(err)
}

// EmailAvailability reports whether an email address is unregistered.
func (s *Service) EmailAvailability(ctx context.Context, email string) (Availability, error) {
	email = NormalizeEmail(email)
	if !validation.IsEmail(email) {
		return Availability{}, apperr.InvalidInput(msgInvalidEmail)
	}
	_, err := s.repo.FindByEmail(ctx, email)
	return availability(err)
}

// Credentials lists the credential tokens held by wallet.
func (s *Service) Credentials(ctx context.Context, wallet string) ([]CredentialOwnership, error) {
	user, err := s.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if user.CredentialsOwned == nil {
		return []CredentialOwnership{}, nil
	}
	return user.CredentialsOwned, nil
}

// AddCredential records a credential token for the holder wallet. The issuer
// defaults to defaultIssuer and the issue date to now.
func (s *Service) AddCredential(ctx context.Context, wallet, defaultIssuer string, in CredentialInput) (User, error) {
	in.TokenID = strings.TrimSpace(in.TokenID)
	in.CredentialType = strings.TrimSpace(in.CredentialType)
	if in.Issuer == "" {
		in.Issuer = defaultIssuer
	}
	if err := s.validate.Struct(in); err != nil {
		return User{}, validationError(err, credentialMessages)
	}

	holder, err := s.GetByWallet(ctx, wallet)
	if err != nil {
		return User{}, err
	}
	issued := s.now().UTC()
	if in.IssueDate != nil {
		issued = in.IssueDate.UTC()
	}
	user, err := s.repo.AddCredential(ctx, holder.ID, CredentialOwnership{
		TokenID:        in.TokenID,
		Issuer:         NormalizeWallet(in.Issuer),
		CredentialType: in.CredentialType,
		IssueDate:      issued,
		OnChain:        in.OnChain,
	})
	return user, mapLookupError(err)
}

// RemoveCredential drops every record of tokenID from the holder's list.
func (s *Service) RemoveCredential(ctx context.Context, wallet, tokenID string) (User, error) {
	holder, err := s.GetByWallet(ctx, wallet)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.RemoveCredential(ctx, holder.ID, tokenID)
	return user, mapLookupError(err)
}

// VerifiedInstitutions lists verified institution accounts.
func (s *Service) VerifiedInstitutions(ctx context.Context) ([]User, error) {
	users, err := s.repo.FindVerifiedInstitutions(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list institutions", err)
	}
	return users, nil
}

func (in ProfileUpdate) patch() Patch {
	p := Patch{Name: in.Name, Email: in.Email}
	if f := in.Profile; f != nil {
		p.Profile = &ProfilePatch{Bio: f.Bio, Avatar: f.Avatar, LinkedIn: f.LinkedIn, Website: f.Website, Documents: f.Documents}
	}
	if f := in.Preferences; f != nil {
		p.Preferences = &PreferencesPatch{Notifications: f.Notifications, PublicProfile: f.PublicProfile}
	}
	return p
}

func availability(err error) (Availability, error) {
	switch {
	case err == nil:
		return Availability{Available: false, Registered: true}, nil
	case errors.Is(err, ErrNotFound):
		return Availability{Available: true, Registered: false}, nil
	default:
		return Availability{}, apperr.Internal("failed to check availability", err)
	}
}

func mapLookupError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(msgUserNotFound)
	default:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.Internal("user store failure", err)
	}
}

// validationError reports the first failed rule as the message and every
// failure as details.
func validationError(err error, messages map[string]string) error {
	details := validation.Details(err, messages)
	if len(details) == 0 {
		return apperr.InvalidInput("Invalid request")
	}
	return apperr.InvalidInput(details[0].Message).WithDetails(details)
}
