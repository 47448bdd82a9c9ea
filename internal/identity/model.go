package identity

import (
	"strings"
	"time"
)

// UserType controls what a user may do on the platform. It is assigned at
// creation.
type UserType string

const (
	UserTypeUser        UserType = "user"
	UserTypeInstitution UserType = "institution"
	UserTypeEmployer    UserType = "employer"
	UserTypeVerifier    UserType = "verifier"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeUser, UserTypeInstitution, UserTypeEmployer, UserTypeVerifier:
		return true
	}
	return false
}

// User represents a wallet holder known to the platform.
type User struct {
	ID               string
	WalletAddress    string
	Email            string
	Name             string
	UserType         UserType
	IsVerified       bool
	IsAdmin          bool
	Profile          Profile
	Preferences      Preferences
	CredentialsOwned []CredentialOwnership
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile is the optional public profile of a user.
type Profile struct {
	Bio       string   `json:"bio,omitempty"`
	Avatar    string   `json:"avatar,omitempty"`
	LinkedIn  string   `json:"linkedin,omitempty"`
	Website   string   `json:"website,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

// Preferences holds per-user notification and visibility switches.
type Preferences struct {
	Notifications bool `json:"notifications"`
	PublicProfile bool `json:"publicProfile"`
}

// DefaultPreferences applies to newly created users.
func DefaultPreferences() Preferences {
	return Preferences{Notifications: true, PublicProfile: false}
}

// CredentialOwnership records a credential token held by a user.
type CredentialOwnership struct {
	TokenID        string    `json:"tokenId"`
	Issuer         string    `json:"issuer"`
	CredentialType string    `json:"credentialType"`
	IssueDate      time.Time `json:"issueDate"`
	OnChain        bool      `json:"onChain"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Email       *string
	Profile     *ProfilePatch
	Preferences *PreferencesPatch
	IsVerified  *bool
}

// ProfilePatch is a partial update of Profile.
type ProfilePatch struct {
	Bio       *string
	Avatar    *string
	LinkedIn  *string
	Website   *string
	Documents *[]string
}

// PreferencesPatch is a partial update of Preferences.
type PreferencesPatch struct {
	Notifications *bool
	PublicProfile *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Profile == nil && p.Preferences == nil && p.IsVerified == nil
}

// Apply mutates u with the non-nil fields of p. Stores that cannot express
// partial updates natively use it for read-modify-write.
func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	if pp := p.Profile; pp != nil {
		if pp.Bio != nil {
			u.Profile.Bio = *pp.Bio
		}
		if pp.Avatar != nil {
			u.Profile.Avatar = *pp.Avatar
		}
		if pp.LinkedIn != nil {
			u.Profile.LinkedIn = *pp.LinkedIn
		}
		if pp.Website != nil {
			u.Profile.Website = *pp.Website
		}
		if pp.Documents != nil {
			u.Profile.Documents = append([]string(nil), (*pp.Documents)...)
		}
	}
	if pp := p.Preferences; pp != nil {
		if pp.Notifications != nil {
			u.Preferences.Notifications = *pp.Notifications
		}
		if pp.PublicProfile != nil {
			u.Preferences.PublicProfile = *pp.PublicProfile
		}
	}
}

// NormalizeWallet lowercases a wallet address for storage and lookup.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// NormalizeEmail lowercases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultName derives the display name given to users created on first login.
func DefaultName(wallet string) string {
	w := NormalizeWallet(wallet)
	if len(w) > 8 {
		w = w[:8]
	}
	return "User_" + w
}
