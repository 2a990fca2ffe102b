// Package models defines the core data structures for journal entries and users.
package models

import "time"

// DefaultJournalID is the journal used when a request does not name one.
const DefaultJournalID = "default"

// Entry is a single journal memory owned by a user.
type Entry struct {
	// ID is the unique identifier for the entry.
	ID string `json:"entry_id"`
	// Content is the text of the memory.
	Content string `json:"content"`
	// MediaURL points at attached media, if any.
	MediaURL *string `json:"media_url"`
	// Transcription holds the text of voice content, if any.
	Transcription *string `json:"transcription"`
	// Tags are free-form labels.
	Tags []string `json:"tags"`
	// DateOfMemory is when the memory happened.
	DateOfMemory time.Time `json:"date_of_memory"`
	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"timestamp_created"`
	// UpdatedAt is set on every allow-listed update.
	UpdatedAt *time.Time `json:"timestamp_updated,omitempty"`
	// AuthorID references the user that created the entry.
	AuthorID string `json:"author_id"`
	Privacy  Privacy    `json:"privacy"`
	Source   SourceType `json:"source_type"`
	// Deleted marks a soft-deleted entry.
	Deleted   bool   `json:"deleted_flag"`
	JournalID string `json:"journal_id"`
}

// EntryPatch carries the allow-listed fields of an entry update.
// Nil fields are left untouched.
type EntryPatch struct {
	Content       *string
	Tags          []string
	DateOfMemory  *time.Time
	Privacy       *Privacy
	MediaURL      *string
	Transcription *string
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Content == nil && p.Tags == nil && p.DateOfMemory == nil &&
		p.Privacy == nil && p.MediaURL == nil && p.Transcription == nil
}

// EntryFilter narrows an entry listing.
type EntryFilter struct {
	AuthorID  string
	JournalID string
	Tag       string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Ascending bool
}

// User is an account holder. PhoneNumber is the login credential.
type User struct {
	ID                 string             `json:"user_id"`
	Name               string             `json:"name"`
	PhoneNumber        string             `json:"phone_number"`
	Email              *string            `json:"email"`
	Avatar             *string            `json:"avatar"`
	Role               Role               `json:"role"`
	Permissions        []string           `json:"permissions"`
	DefaultPrivacy     Privacy            `json:"default_privacy"`
	NudgeOptIn         bool               `json:"nudge_opt_in"`
	NudgeFrequency     NudgeFrequency     `json:"nudge_frequency"`
	AccountCreated     time.Time          `json:"account_created"`
	LastActive         time.Time          `json:"last_active"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   *string            `json:"stripe_customer_id,omitempty"`
}

// UserPatch carries the allow-listed fields of a profile update.
type UserPatch struct {
	Name           *string
	Email          *string
	Avatar         *string
	DefaultPrivacy *Privacy
	NudgeOptIn     *bool
	NudgeFrequency *NudgeFrequency
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Avatar == nil &&
		p.DefaultPrivacy == nil && p.NudgeOptIn == nil && p.NudgeFrequency == nil
}

// UnknownSMS is an inbound message from a number with no account, kept for review.
type UnknownSMS struct {
	ID         string
	FromNumber string
	Body       string
	MediaURLs  []string
	ReceivedAt time.Time
}
