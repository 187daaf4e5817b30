package domain

import (
	"context"
	"time"

	"sunnyside/internal/deadline"
)

// ActivityStatus is the lifecycle state of an activity.
type ActivityStatus string

const (
	ActivityStatusCollecting ActivityStatus = "collecting"
	ActivityStatusFinalized  ActivityStatus = "finalized"
	ActivityStatusCancelled  ActivityStatus = "cancelled"
)

// Activity is an outing planned by an organizer from a free-text description.
// ResponseDeadline is set whenever ActivityDate is set.
// swagger:model Activity
type Activity struct {
	ID               string         `json:"id"`
	OrganizerID      string         `json:"organizer_id"`
	RawInput         string         `json:"raw_input"`
	Title            string         `json:"title"`
	ActivityType     string         `json:"activity_type"`
	Location         string         `json:"location"`
	Status           ActivityStatus `json:"status"`
	ActivityDate     *time.Time     `json:"activity_date"`
	ResponseDeadline *time.Time     `json:"response_deadline"`
	ReminderSentAt   *time.Time     `json:"reminder_sent_at,omitempty"`
	Venue            *string        `json:"venue"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewActivity returns a collecting Activity. ID is typically set by the repository on create.
func NewActivity(organizerID, rawInput, title string, createdAt, updatedAt time.Time) *Activity {
	return &Activity{
		OrganizerID: organizerID,
		RawInput:    rawInput,
		Title:       title,
		Status:      ActivityStatusCollecting,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// Schedule sets the activity date and recomputes the response deadline against now.
func (a *Activity) Schedule(date, now time.Time) {
	dl := deadline.Compute(date, now)
	a.ActivityDate = &date
	a.ResponseDeadline = &dl
	a.ReminderSentAt = nil
}

// DeadlineInfo renders the response deadline against now. Nil when no date is set.
func (a *Activity) DeadlineInfo(now time.Time) *deadline.Info {
	if a.ResponseDeadline == nil {
		return nil
	}
	info := deadline.Describe(*a.ResponseDeadline, now)
	return &info
}

// AcceptingResponses reports whether invitees may still respond at now.
func (a *Activity) AcceptingResponses(now time.Time) error {
	if a.Status != ActivityStatusCollecting {
		return ErrActivityClosed
	}
	if a.ResponseDeadline != nil && deadline.IsPassed(*a.ResponseDeadline, now) {
		return ErrDeadlinePassed
	}
	return nil
}

// ActivityUpdate holds the mutable fields written by ActivityRepository.Update.
type ActivityUpdate struct {
	Status           ActivityStatus
	ActivityDate     *time.Time
	ResponseDeadline *time.Time
	ReminderSentAt   *time.Time
	Venue            *string
}

// ActivityDetails bundles an activity with its invitations and rendered deadline.
type ActivityDetails struct {
	Activity    *Activity      `json:"activity"`
	Invitations []*Invitation  `json:"invitations"`
	Deadline    *deadline.Info `json:"deadline"`
}

// FinalizeInput is the organizer's final decision for an activity.
type FinalizeInput struct {
	Date               time.Time
	Venue              string
	GuestInvitationIDs []string
}

// ActivityRepository defines storage for activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity *Activity) error
	GetByID(ctx context.Context, id string) (*Activity, error)
	ListByOrganizerID(ctx context.Context, organizerID string, params PaginationParams) ([]*Activity, int, error)
	// ListAwaitingReminder returns collecting activities with a deadline after now and no reminder sent.
	ListAwaitingReminder(ctx context.Context, now time.Time) ([]*Activity, error)
	Update(ctx context.Context, id string, upd ActivityUpdate) (*Activity, error)
	// MarkReminderSent stamps reminder_sent_at only while the activity is still
	// collecting, unreminded and due at responseDeadline. It reports whether the
	// row was claimed.
	MarkReminderSent(ctx context.Context, id string, responseDeadline, sentAt time.Time) (bool, error)
	// Finalize writes the guest list and the finalized activity in one
	// transaction. ErrActivityClosed when the activity is no longer collecting.
	Finalize(ctx context.Context, id string, upd ActivityUpdate, guestInvitationIDs []string) (*Activity, error)
}

// ActivityCache caches activity details by ID. Get returns nil details on a
// miss together with the entry's version; Set stores only when that version is
// still current, so a load that raced an Invalidate is dropped.
type ActivityCache interface {
	Get(ctx context.Context, activityID string) (*ActivityDetails, int64, error)
	Set(ctx context.Context, details *ActivityDetails, version int64) error
	Invalidate(ctx context.Context, activityID string) error
}

// CalendarExporter renders an activity as an iCalendar document.
type CalendarExporter interface {
	Export(activity *Activity, organizer *User, guests []*Invitation) ([]byte, error)
}

// ActivityService defines organizer-side operations on activities.
type ActivityService interface {
	CreateActivity(ctx context.Context, organizerID, rawInput string, activityDate *time.Time) (*Activity, error)
	GetActivity(ctx context.Context, activityID, organizerID string) (*ActivityDetails, error)
	ListMyActivities(ctx context.Context, organizerID string, params PaginationParams) ([]*Activity, int, error)
	SetActivityDate(ctx context.Context, activityID, organizerID string, date time.Time) (*Activity, error)
	ExtendDeadline(ctx context.Context, activityID, organizerID string) (*Activity, error)
	// InviteGuests creates invitations and emails them. Returns how many were sent and the emails that failed.
	InviteGuests(ctx context.Context, activityID, organizerID string, emails []string) (sent int, failed []string, err error)
	ListInvitations(ctx context.Context, activityID, organizerID string) ([]*Invitation, error)
	FinalizeActivity(ctx context.Context, activityID, organizerID string, in FinalizeInput) (*ActivityDetails, error)
	CancelActivity(ctx context.Context, activityID, organizerID string) (*Activity, error)
	CalendarFile(ctx context.Context, activityID, organizerID string) ([]byte, error)
}
