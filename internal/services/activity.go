package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"sunnyside/internal/deadline"
	"sunnyside/internal/domain"
)

const emailDateLayout = "Monday, January 2, 2006 at 15:04 MST"

// ActivityServiceDeps groups the collaborators of the activity service.
// Cache may be nil to disable caching.
type ActivityServiceDeps struct {
	Activities   domain.ActivityRepository
	Invitations  domain.InvitationRepository
	Users        domain.UserRepository
	Interpreter  domain.IntentInterpreter
	EmailService domain.EmailService
	Calendar     domain.CalendarExporter
	Cache        domain.ActivityCache
	Logger       *slog.Logger
	// BaseURL is the public web client URL used to build response links.
	BaseURL        string
	ContextTimeout time.Duration
}

type activityService struct {
	activityRepo   domain.ActivityRepository
	invitationRepo domain.InvitationRepository
	userRepo       domain.UserRepository
	interpreter    domain.IntentInterpreter
	emailService   domain.EmailService
	calendar       domain.CalendarExporter
	cache          domain.ActivityCache
	logger         *slog.Logger
	baseURL        string
	contextTimeout time.Duration
	group          singleflight.Group
	now            func() time.Time
}

func NewActivityService(deps ActivityServiceDeps) domain.ActivityService {
	return &activityService{
		activityRepo:   deps.Activities,
		invitationRepo: deps.Invitations,
		userRepo:       deps.Users,
		interpreter:    deps.Interpreter,
		emailService:   deps.EmailService,
		calendar:       deps.Calendar,
		cache:          deps.Cache,
		logger:         deps.Logger,
		baseURL:        strings.TrimRight(deps.BaseURL, "/"),
		contextTimeout: deps.ContextTimeout,
		now:            time.Now,
	}
}

func (s *activityService) CreateActivity(ctx context.Context, organizerID, rawInput string, activityDate *time.Time) (*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	rawInput = strings.TrimSpace(rawInput)
	if rawInput == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}

	intent, err := s.interpreter.Interpret(ctx, rawInput)
	if err != nil {
		return nil, fmt.Errorf("interpret activity: %w", err)
	}

	now := s.now()
	title := strings.TrimSpace(intent.Title)
	if title == "" {
		title = rawInput
	}
	activity := domain.NewActivity(organizerID, rawInput, title, now, now)
	activity.ActivityType = intent.ActivityType
	activity.Location = intent.Location

	date := activityDate
	if date == nil {
		date = intent.SuggestedDate
	}
	if date != nil {
		if date.IsZero() {
			return nil, fmt.Errorf("%w: activity date", deadline.ErrInvalidDate)
		}
		activity.Schedule(*date, now)
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return activity, nil
}

func (s *activityService) GetActivity(ctx context.Context, activityID, organizerID string) (*domain.ActivityDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	flight := s.group.DoChan(activityID, func() (any, error) {
		// Shared by the whole flight; outlives the caller that started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.contextTimeout)
		defer cancel()
		return s.loadDetails(loadCtx, activityID)
	})
	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	shared := res.Val.(*domain.ActivityDetails)
	if shared.Activity.OrganizerID != organizerID {
		return nil, domain.ErrForbidden
	}

	// Callers of one flight share the loaded value; the deadline is rendered per call.
	details := *shared
	details.Deadline = details.Activity.DeadlineInfo(s.now())
	return &details, nil
}

func (s *activityService) loadDetails(ctx context.Context, activityID string) (*domain.ActivityDetails, error) {
	var version int64
	cacheable := s.cache != nil
	if s.cache != nil {
		cached, v, err := s.cache.Get(ctx, activityID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "activity cache read failed", "activity_id", activityID, "err", err)
			cacheable = false
		case cached != nil:
			return cached, nil
		}
		version = v
	}

	activity, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	invitations, err := s.invitationRepo.ListByActivityID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	details := &domain.ActivityDetails{Activity: activity, Invitations: invitations}

	if cacheable {
		if err := s.cache.Set(ctx, details, version); err != nil {
			s.logger.WarnContext(ctx, "activity cache write failed", "activity_id", activityID, "err", err)
		}
	}
	return details, nil
}

func (s *activityService) ListMyActivities(ctx context.Context, organizerID string, params domain.PaginationParams) ([]*domain.Activity, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	activities, total, err := s.activityRepo.ListByOrganizerID(ctx, organizerID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	return activities, total, nil
}

func (s *activityService) SetActivityDate(ctx context.Context, activityID, organizerID string, date time.Time) (*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if date.IsZero() {
		return nil, fmt.Errorf("%w: activity date", deadline.ErrInvalidDate)
	}
	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return nil, err
	}
	if activity.Status != domain.ActivityStatusCollecting {
		return nil, domain.ErrActivityClosed
	}

	activity.Schedule(date, s.now())
	return s.save(ctx, activity)
}

func (s *activityService) ExtendDeadline(ctx context.Context, activityID, organizerID string) (*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return nil, err
	}
	if activity.Status != domain.ActivityStatusCollecting {
		return nil, domain.ErrActivityClosed
	}

	var current time.Time
	if activity.ResponseDeadline != nil {
		current = *activity.ResponseDeadline
	}
	extended := deadline.Extend(current, s.now())
	activity.ResponseDeadline = &extended
	activity.ReminderSentAt = nil
	return s.save(ctx, activity)
}

func (s *activityService) InviteGuests(ctx context.Context, activityID, organizerID string, emails []string) (int, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if len(emails) == 0 {
		return 0, nil, fmt.Errorf("%w: at least one email is required", domain.ErrInvalidInput)
	}
	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return 0, nil, err
	}
	now := s.now()
	if err := activity.AcceptingResponses(now); err != nil {
		return 0, nil, err
	}
	organizer, err := s.userRepo.GetByID(ctx, organizerID)
	if err != nil {
		return 0, nil, fmt.Errorf("get organizer: %w", err)
	}

	base := domain.InvitationEmailData{
		OrganizerName: organizer.Name,
		Title:         activity.Title,
		ActivityDate:  formatEmailDate(activity.ActivityDate),
	}
	if activity.ResponseDeadline != nil {
		base.DeadlineText = deadline.Text(*activity.ResponseDeadline, now)
	}

	sent := 0
	failed := make([]string, 0)
	seen := make(map[string]bool, len(emails))
	for _, raw := range emails {
		email := domain.NormalizeEmail(raw)
		if seen[email] {
			continue
		}
		seen[email] = true
		if !domain.ValidEmail(email) {
			failed = append(failed, raw)
			continue
		}

		token, err := generateToken()
		if err != nil {
			return sent, failed, fmt.Errorf("generate invitation token: %w", err)
		}
		inv := domain.NewInvitation(activity.ID, email, token, now)
		if err := s.invitationRepo.Create(ctx, inv); err != nil {
			s.logger.ErrorContext(ctx, "create invitation failed", "activity_id", activity.ID, "email", email, "err", err)
			failed = append(failed, raw)
			continue
		}

		data := base
		data.Email = email
		data.ResponseURL = responseURL(s.baseURL, inv.Token)
		if err := s.emailService.SendInvitation(ctx, &data); err != nil {
			s.logger.WarnContext(ctx, "invitation email failed", "activity_id", activity.ID, "email", email, "err", err)
			failed = append(failed, raw)
			continue
		}
		sent++
	}

	s.invalidate(ctx, activity.ID)
	return sent, failed, nil
}

func (s *activityService) ListInvitations(ctx context.Context, activityID, organizerID string) ([]*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedActivity(ctx, activityID, organizerID); err != nil {
		return nil, err
	}
	invitations, err := s.invitationRepo.ListByActivityID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invitations, nil
}

func (s *activityService) FinalizeActivity(ctx context.Context, activityID, organizerID string, in domain.FinalizeInput) (*domain.ActivityDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: activity date", deadline.ErrInvalidDate)
	}
	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return nil, err
	}
	if activity.Status != domain.ActivityStatusCollecting {
		return nil, domain.ErrActivityClosed
	}

	invitations, err := s.invitationRepo.ListByActivityID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	byID := make(map[string]*domain.Invitation, len(invitations))
	for _, inv := range invitations {
		byID[inv.ID] = inv
	}
	for _, id := range in.GuestInvitationIDs {
		if byID[id] == nil {
			return nil, fmt.Errorf("%w: invitation %s does not belong to this activity", domain.ErrInvalidInput, id)
		}
	}

	date := in.Date
	activity.ActivityDate = &date
	activity.Status = domain.ActivityStatusFinalized
	if venue := strings.TrimSpace(in.Venue); venue != "" {
		activity.Venue = &venue
	}
	updated, err := s.activityRepo.Finalize(ctx, activityID, updateOf(activity), in.GuestInvitationIDs)
	if err != nil {
		if errors.Is(err, domain.ErrActivityClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("finalize activity: %w", err)
	}
	s.invalidate(ctx, activityID)

	guests := make(map[string]bool, len(in.GuestInvitationIDs))
	for _, id := range in.GuestInvitationIDs {
		guests[id] = true
	}
	for _, inv := range invitations {
		inv.InGuestList = guests[inv.ID]
	}
	s.notifyGuests(ctx, updated, organizerID, invitations)

	return &domain.ActivityDetails{
		Activity:    updated,
		Invitations: invitations,
		Deadline:    updated.DeadlineInfo(s.now()),
	}, nil
}

func (s *activityService) notifyGuests(ctx context.Context, activity *domain.Activity, organizerID string, invitations []*domain.Invitation) {
	organizer, err := s.userRepo.GetByID(ctx, organizerID)
	if err != nil {
		s.logger.WarnContext(ctx, "finalized emails skipped", "activity_id", activity.ID, "err", err)
		return
	}
	venue := activity.Location
	if activity.Venue != nil {
		venue = *activity.Venue
	}
	for _, inv := range invitations {
		if !inv.InGuestList {
			continue
		}
		data := &domain.FinalizedEmailData{
			Email:         inv.Email,
			OrganizerName: organizer.Name,
			Title:         activity.Title,
			ActivityDate:  formatEmailDate(activity.ActivityDate),
			Venue:         venue,
		}
		if err := s.emailService.SendFinalized(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "finalized email failed", "activity_id", activity.ID, "email", inv.Email, "err", err)
		}
	}
}

func (s *activityService) CancelActivity(ctx context.Context, activityID, organizerID string) (*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return nil, err
	}
	if activity.Status == domain.ActivityStatusCancelled {
		return nil, domain.ErrActivityClosed
	}
	activity.Status = domain.ActivityStatusCancelled
	return s.save(ctx, activity)
}

func (s *activityService) CalendarFile(ctx context.Context, activityID, organizerID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	activity, err := s.ownedActivity(ctx, activityID, organizerID)
	if err != nil {
		return nil, err
	}
	if activity.ActivityDate == nil {
		return nil, fmt.Errorf("%w: activity has no date yet", domain.ErrInvalidInput)
	}
	organizer, err := s.userRepo.GetByID(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("get organizer: %w", err)
	}
	invitations, err := s.invitationRepo.ListByActivityID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	guests := make([]*domain.Invitation, 0, len(invitations))
	for _, inv := range invitations {
		if activity.Status == domain.ActivityStatusFinalized {
			if inv.InGuestList {
				guests = append(guests, inv)
			}
			continue
		}
		if inv.Response != domain.ResponseUnavailable {
			guests = append(guests, inv)
		}
	}

	ics, err := s.calendar.Export(activity, organizer, guests)
	if err != nil {
		return nil, fmt.Errorf("export calendar: %w", err)
	}
	return ics, nil
}

// ownedActivity loads an activity and checks that organizerID owns it.
func (s *activityService) ownedActivity(ctx context.Context, activityID, organizerID string) (*domain.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if activity.OrganizerID != organizerID {
		return nil, domain.ErrForbidden
	}
	return activity, nil
}

func (s *activityService) save(ctx context.Context, a *domain.Activity) (*domain.Activity, error) {
	updated, err := s.activityRepo.Update(ctx, a.ID, updateOf(a))
	if err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	s.invalidate(ctx, a.ID)
	return updated, nil
}

func (s *activityService) invalidate(ctx context.Context, activityID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, activityID); err != nil {
		s.logger.WarnContext(ctx, "activity cache invalidate failed", "activity_id", activityID, "err", err)
	}
}

// responseURL is the web client page where an invitee answers with token.
func responseURL(baseURL, token string) string {
	return baseURL + "/respond/" + token
}

func updateOf(a *domain.Activity) domain.ActivityUpdate {
	return domain.ActivityUpdate{
		Status:           a.Status,
		ActivityDate:     a.ActivityDate,
		ResponseDeadline: a.ResponseDeadline,
		ReminderSentAt:   a.ReminderSentAt,
		Venue:            a.Venue,
	}
}

func formatEmailDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(emailDateLayout)
}
