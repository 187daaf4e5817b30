package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sunnyside/internal/deadline"
	"sunnyside/internal/domain"
)

type reminderService struct {
	activityRepo   domain.ActivityRepository
	invitationRepo domain.InvitationRepository
	userRepo       domain.UserRepository
	emailService   domain.EmailService
	cache          domain.ActivityCache
	logger         *slog.Logger
	baseURL        string
	contextTimeout time.Duration
	now            func() time.Time
}

// NewReminderService creates the service behind the scheduled reminder job.
// cache may be nil.
func NewReminderService(
	activityRepo domain.ActivityRepository,
	invitationRepo domain.InvitationRepository,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	cache domain.ActivityCache,
	logger *slog.Logger,
	baseURL string,
	timeout time.Duration,
) domain.ReminderService {
	return &reminderService{
		activityRepo:   activityRepo,
		invitationRepo: invitationRepo,
		userRepo:       userRepo,
		emailService:   emailService,
		cache:          cache,
		logger:         logger,
		baseURL:        strings.TrimRight(baseURL, "/"),
		contextTimeout: timeout,
		now:            time.Now,
	}
}

// SendDeadlineReminders emails pending invitees of every activity whose
// deadline has entered the warning window, once per activity. It returns the
// number of reminder emails sent.
func (s *reminderService) SendDeadlineReminders(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.now()
	activities, err := s.activityRepo.ListAwaitingReminder(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list activities awaiting reminder: %w", err)
	}

	sent := 0
	for _, activity := range activities {
		if activity.ResponseDeadline == nil {
			continue
		}
		if deadline.StatusOf(*activity.ResponseDeadline, now) != deadline.StatusWarning {
			continue
		}
		n, err := s.remind(ctx, activity, now)
		sent += n
		if err != nil {
			s.logger.ErrorContext(ctx, "deadline reminder failed", "activity_id", activity.ID, "err", err)
		}
	}
	return sent, nil
}

// remind claims the activity's reminder slot before sending. An activity that
// changed after it was listed is skipped.
func (s *reminderService) remind(ctx context.Context, activity *domain.Activity, now time.Time) (int, error) {
	organizer, err := s.userRepo.GetByID(ctx, activity.OrganizerID)
	if err != nil {
		return 0, fmt.Errorf("get organizer: %w", err)
	}
	invitations, err := s.invitationRepo.ListByActivityID(ctx, activity.ID)
	if err != nil {
		return 0, fmt.Errorf("list invitations: %w", err)
	}

	claimed, err := s.activityRepo.MarkReminderSent(ctx, activity.ID, *activity.ResponseDeadline, now)
	if err != nil {
		return 0, fmt.Errorf("mark reminder sent: %w", err)
	}
	if !claimed {
		s.logger.DebugContext(ctx, "deadline reminder skipped, activity changed", "activity_id", activity.ID)
		return 0, nil
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, activity.ID); err != nil {
			s.logger.WarnContext(ctx, "activity cache invalidate failed", "activity_id", activity.ID, "err", err)
		}
	}

	text := deadline.Text(*activity.ResponseDeadline, now)
	sent := 0
	for _, inv := range invitations {
		if inv.Response != domain.ResponsePending {
			continue
		}
		data := &domain.InvitationEmailData{
			Email:         inv.Email,
			OrganizerName: organizer.Name,
			Title:         activity.Title,
			ActivityDate:  formatEmailDate(activity.ActivityDate),
			DeadlineText:  text,
			ResponseURL:   responseURL(s.baseURL, inv.Token),
		}
		if err := s.emailService.SendReminder(ctx, data); err != nil {
			s.logger.WarnContext(ctx, "reminder email failed", "activity_id", activity.ID, "email", inv.Email, "err", err)
			continue
		}
		sent++
	}
	s.logger.InfoContext(ctx, "deadline reminders sent", "activity_id", activity.ID, "count", sent)
	return sent, nil
}
