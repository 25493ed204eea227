package models

import (
	"strings"
	"time"

	"authguard/internal/lockout"

	"github.com/google/uuid"
)

// Role is the authorization role of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account and its credential state
type User struct {
	ID                       uuid.UUID   `json:"id"`
	Name                     string      `json:"name"`
	Email                    string      `json:"email"`
	PasswordHash             string      `json:"-"`
	Role                     Role        `json:"role"`
	IsEmailVerified          bool        `json:"isEmailVerified"`
	VerificationTokenHash    *string     `json:"-"`
	VerificationTokenExpires *time.Time  `json:"-"`
	ResetPasswordTokenHash   *string     `json:"-"`
	ResetPasswordExpires     *time.Time  `json:"-"`
	TwoFactorSecret          *string     `json:"-"`
	IsTwoFactorEnabled       bool        `json:"isTwoFactorEnabled"`
	LoginAttempts            int         `json:"-"`
	LockUntil                *time.Time  `json:"-"`
	LastLogin                *time.Time  `json:"lastLogin,omitempty"`
	Profile                  Profile     `json:"profile"`
	Preferences              Preferences `json:"preferences"`
	CreatedAt                time.Time   `json:"createdAt"`
	UpdatedAt                time.Time   `json:"updatedAt"`
}

// Profile holds optional personal details
type Profile struct {
	FirstName         string            `json:"firstName,omitempty"`
	LastName          string            `json:"lastName,omitempty"`
	Bio               string            `json:"bio,omitempty"`
	Location          string            `json:"location,omitempty"`
	Website           string            `json:"website,omitempty"`
	Company           string            `json:"company,omitempty"`
	JobTitle          string            `json:"jobTitle,omitempty"`
	PhoneNumber       string            `json:"phoneNumber,omitempty"`
	DateOfBirth       *time.Time        `json:"dateOfBirth,omitempty"`
	AvatarURL         string            `json:"avatarUrl,omitempty"`
	SocialLinks       map[string]string `json:"socialLinks,omitempty"`
	Skills            []string          `json:"skills,omitempty"`
	Interests         []string          `json:"interests,omitempty"`
	PreferredLanguage string            `json:"preferredLanguage"`
	Timezone          string            `json:"timezone,omitempty"`
}

// Preferences holds notification and UI settings
type Preferences struct {
	EmailNotifications bool   `json:"emailNotifications"`
	MarketingEmails    bool   `json:"marketingEmails"`
	TwoFactorMethod    string `json:"twoFactorMethod"`
	Theme              string `json:"theme"`
}

// DefaultProfile returns the profile assigned at registration
func DefaultProfile() Profile {
	return Profile{PreferredLanguage: "en"}
}

// DefaultPreferences returns the preferences assigned at registration
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		MarketingEmails:    false,
		TwoFactorMethod:    "app",
		Theme:              "system",
	}
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LockoutState returns the lockout fields as a policy state
func (u *User) LockoutState() lockout.State {
	return lockout.State{LoginAttempts: u.LoginAttempts, LockUntil: u.LockUntil}
}

// ApplyLockoutState copies a policy state onto the user
func (u *User) ApplyLockoutState(s lockout.State) {
	u.LoginAttempts = s.LoginAttempts
	u.LockUntil = s.LockUntil
}

// UserSummary is the public view of a user returned by auth endpoints
type UserSummary struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Role               Role       `json:"role"`
	IsEmailVerified    bool       `json:"isEmailVerified"`
	IsTwoFactorEnabled bool       `json:"isTwoFactorEnabled"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
}

// Summary returns the public view of the user
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		IsEmailVerified:    u.IsEmailVerified,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		LastLogin:          u.LastLogin,
	}
}

// UserRef is the name/email pair attached to admin listings
type UserRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched
type ProfileUpdate struct {
	FirstName         *string            `json:"firstName" binding:"omitempty,max=50"`
	LastName          *string            `json:"lastName" binding:"omitempty,max=50"`
	Bio               *string            `json:"bio" binding:"omitempty,max=500"`
	Location          *string            `json:"location"`
	Website           *string            `json:"website" binding:"omitempty,url"`
	Company           *string            `json:"company"`
	JobTitle          *string            `json:"jobTitle"`
	PhoneNumber       *string            `json:"phoneNumber"`
	DateOfBirth       *time.Time         `json:"dateOfBirth"`
	AvatarURL         *string            `json:"avatarUrl" binding:"omitempty,url"`
	SocialLinks       *map[string]string `json:"socialLinks"`
	Skills            *[]string          `json:"skills"`
	Interests         *[]string          `json:"interests"`
	PreferredLanguage *string            `json:"preferredLanguage" binding:"omitempty,min=2,max=10"`
	Timezone          *string            `json:"timezone"`
}

// Empty reports whether the update carries no fields
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Bio == nil && p.Location == nil &&
		p.Website == nil && p.Company == nil && p.JobTitle == nil && p.PhoneNumber == nil &&
		p.DateOfBirth == nil && p.AvatarURL == nil && p.SocialLinks == nil && p.Skills == nil &&
		p.Interests == nil && p.PreferredLanguage == nil && p.Timezone == nil
}

// Apply writes the non-nil fields onto profile
func (p ProfileUpdate) Apply(profile *Profile) {
	setString(&profile.FirstName, p.FirstName)
	setString(&profile.LastName, p.LastName)
	setString(&profile.Bio, p.Bio)
	setString(&profile.Location, p.Location)
	setString(&profile.Website, p.Website)
	setString(&profile.Company, p.Company)
	setString(&profile.JobTitle, p.JobTitle)
	setString(&profile.PhoneNumber, p.PhoneNumber)
	setString(&profile.AvatarURL, p.AvatarURL)
	setString(&profile.PreferredLanguage, p.PreferredLanguage)
	setString(&profile.Timezone, p.Timezone)
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		profile.DateOfBirth = &dob
	}
	if p.SocialLinks != nil {
		profile.SocialLinks = *p.SocialLinks
	}
	if p.Skills != nil {
		profile.Skills = *p.Skills
	}
	if p.Interests != nil {
		profile.Interests = *p.Interests
	}
}

// PreferencesUpdate carries a partial preferences change
type PreferencesUpdate struct {
	EmailNotifications *bool   `json:"emailNotifications"`
	MarketingEmails    *bool   `json:"marketingEmails"`
	TwoFactorMethod    *string `json:"twoFactorMethod" binding:"omitempty,oneof=app sms email"`
	Theme              *string `json:"theme" binding:"omitempty,oneof=light dark system"`
}

// Empty reports whether the update carries no fields
func (p PreferencesUpdate) Empty() bool {
	return p.EmailNotifications == nil && p.MarketingEmails == nil && p.TwoFactorMethod == nil && p.Theme == nil
}

// Apply writes the non-nil fields onto prefs
func (p PreferencesUpdate) Apply(prefs *Preferences) {
	if p.EmailNotifications != nil {
		prefs.EmailNotifications = *p.EmailNotifications
	}
	if p.MarketingEmails != nil {
		prefs.MarketingEmails = *p.MarketingEmails
	}
	setString(&prefs.TwoFactorMethod, p.TwoFactorMethod)
	setString(&prefs.Theme, p.Theme)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
