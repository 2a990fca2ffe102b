package models

// Privacy controls who can see an entry.
type Privacy string

const (
	PrivacyPrivate Privacy = "private"
	PrivacyShared  Privacy = "shared"
	PrivacyPublic  Privacy = "public"
)

// Valid reports enum membership.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyShared, PrivacyPublic:
		return true
	}
	return false
}

// SourceType is the channel an entry arrived through.
type SourceType string

const (
	SourceApp   SourceType = "app"
	SourceSMS   SourceType = "sms"
	SourceVoice SourceType = "voice"
)

// Valid reports enum membership.
func (s SourceType) Valid() bool {
	switch s {
	case SourceApp, SourceSMS, SourceVoice:
		return true
	}
	return false
}

// Role is a user's relationship to the journal.
type Role string

const (
	RoleParent    Role = "parent"
	RoleCoParent  Role = "co_parent"
	RoleCaregiver Role = "caregiver"
)

// Valid reports enum membership.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleCoParent, RoleCaregiver:
		return true
	}
	return false
}

// NudgeFrequency is how often a user wants reminder nudges.
type NudgeFrequency string

const (
	NudgeDaily        NudgeFrequency = "daily"
	NudgeWeekly       NudgeFrequency = "weekly"
	NudgeOccasionally NudgeFrequency = "occasionally"
)

// Valid reports enum membership.
func (n NudgeFrequency) Valid() bool {
	switch n {
	case NudgeDaily, NudgeWeekly, NudgeOccasionally:
		return true
	}
	return false
}

// SubscriptionStatus is the billing state of an account.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)
