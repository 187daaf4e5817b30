package domain

import (
	"context"
	"time"

	"sunnyside/internal/deadline"
)

// ResponseKind is an invitee's answer to an invitation.
type ResponseKind string

const (
	ResponsePending     ResponseKind = "pending"
	ResponseAvailable   ResponseKind = "available"
	ResponseMaybe       ResponseKind = "maybe"
	ResponseUnavailable ResponseKind = "unavailable"
)

// Valid reports whether r is an answer an invitee may submit.
func (r ResponseKind) Valid() bool {
	switch r {
	case ResponseAvailable, ResponseMaybe, ResponseUnavailable:
		return true
	}
	return false
}

// Invitation is one invitee of an activity. Token is the invitee's public handle.
// swagger:model Invitation
type Invitation struct {
	ID             string            `json:"id"`
	ActivityID     string            `json:"activity_id"`
	Email          string            `json:"email"`
	Token          string            `json:"-"`
	Response       ResponseKind      `json:"response"`
	AvailableDates []time.Time       `json:"available_dates"`
	Preferences    map[string]string `json:"preferences"`
	Note           string            `json:"note"`
	InGuestList    bool              `json:"in_guest_list"`
	InvitedAt      time.Time         `json:"invited_at"`
	RespondedAt    *time.Time        `json:"responded_at"`
}

// NewInvitation returns a pending Invitation. ID is typically set by the repository on create.
func NewInvitation(activityID, email, token string, invitedAt time.Time) *Invitation {
	return &Invitation{
		ActivityID:     activityID,
		Email:          email,
		Token:          token,
		Response:       ResponsePending,
		AvailableDates: []time.Time{},
		Preferences:    map[string]string{},
		InvitedAt:      invitedAt,
	}
}

// InvitationResponse is what an invitee submits.
type InvitationResponse struct {
	Response       ResponseKind
	AvailableDates []time.Time
	Preferences    map[string]string
	Note           string
}

// InvitationView is what an invitee sees when opening their invitation link.
type InvitationView struct {
	Invitation *Invitation    `json:"invitation"`
	Activity   *Activity      `json:"activity"`
	Deadline   *deadline.Info `json:"deadline"`
}

// InvitationRepository defines storage operations for invitations.
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	ListByActivityID(ctx context.Context, activityID string) ([]*Invitation, error)
	SaveResponse(ctx context.Context, id string, resp InvitationResponse, respondedAt time.Time) (*Invitation, error)
}

// InvitationService defines invitee-side operations, addressed by invitation token.
type InvitationService interface {
	GetInvitation(ctx context.Context, token string) (*InvitationView, error)
	Respond(ctx context.Context, token string, resp InvitationResponse) (*Invitation, error)
}

// ReminderService sends reminders to invitees whose response window is closing.
type ReminderService interface {
	// SendDeadlineReminders returns the number of reminder emails sent.
	SendDeadlineReminders(ctx context.Context) (int, error)
}
