package identity

import "time"

// SafeUser is the client-facing projection of a User. Internal fields such as
// the admin flag and owned credentials are only present in AdminUser.
type SafeUser struct {
	ID            string       `json:"id"`
	WalletAddress string       `json:"walletAddress"`
	Name          string       `json:"name"`
	Email         string       `json:"email,omitempty"`
	UserType      UserType     `json:"userType"`
	IsVerified    bool         `json:"isVerified"`
	Profile       *Profile     `json:"profile,omitempty"`
	Preferences   *Preferences `json:"preferences,omitempty"`
	CreatedAt     *time.Time   `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time   `json:"updatedAt,omitempty"`
}

// Summary is the compact projection returned by login, verify and refresh.
func (u User) Summary() SafeUser {
	return SafeUser{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		Name:          u.Name,
		Email:         u.Email,
		UserType:      u.UserType,
		IsVerified:    u.IsVerified,
	}
}

// Safe is the profile projection: Summary plus profile, preferences and
// timestamps.
func (u User) Safe() SafeUser {
	s := u.Summary()
	profile := u.Profile
	prefs := u.Preferences
	created, updated := u.CreatedAt, u.UpdatedAt
	s.Profile = &profile
	s.Preferences = &prefs
	s.CreatedAt = &created
	s.UpdatedAt = &updated
	return s
}

// AdminUser is the projection served to administrators.
type AdminUser struct {
	SafeUser
	IsAdmin          bool                  `json:"isAdmin"`
	CredentialsOwned []CredentialOwnership `json:"credentialsOwned"`
}

// Admin returns the administrator projection.
func (u User) Admin() AdminUser {
	creds := u.CredentialsOwned
	if creds == nil {
		creds = []CredentialOwnership{}
	}
	return AdminUser{SafeUser: u.Safe(), IsAdmin: u.IsAdmin, CredentialsOwned: creds}
}

// InstitutionListing is the public directory entry for a verified institution.
// Email is only filled for authenticated callers.
type InstitutionListing struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
	Email         string `json:"email,omitempty"`
	Website       string `json:"website,omitempty"`
}

// Listing projects an institution for the public directory.
func (u User) Listing(includeEmail bool) InstitutionListing {
	l := InstitutionListing{ID: u.ID, Name: u.Name, WalletAddress: u.WalletAddress, Website: u.Profile.Website}
	if includeEmail {
		l.Email = u.Email
	}
	return l
}
