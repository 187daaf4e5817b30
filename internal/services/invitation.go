package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sunnyside/internal/domain"
)

const maxNoteLen = 1000

type invitationService struct {
	invitationRepo domain.InvitationRepository
	activityRepo   domain.ActivityRepository
	cache          domain.ActivityCache
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewInvitationService creates the token based invitee service. cache may be nil.
func NewInvitationService(
	invitationRepo domain.InvitationRepository,
	activityRepo domain.ActivityRepository,
	cache domain.ActivityCache,
	logger *slog.Logger,
	timeout time.Duration,
) domain.InvitationService {
	return &invitationService{
		invitationRepo: invitationRepo,
		activityRepo:   activityRepo,
		cache:          cache,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *invitationService) GetInvitation(ctx context.Context, token string) (*domain.InvitationView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	inv, activity, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	return &domain.InvitationView{
		Invitation: inv,
		Activity:   activity,
		Deadline:   activity.DeadlineInfo(s.now()),
	}, nil
}

func (s *invitationService) Respond(ctx context.Context, token string, resp domain.InvitationResponse) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !resp.Response.Valid() {
		return nil, fmt.Errorf("%w: response must be available, maybe or unavailable", domain.ErrInvalidInput)
	}
	resp.Note = strings.TrimSpace(resp.Note)
	if len(resp.Note) > maxNoteLen {
		return nil, fmt.Errorf("%w: note is longer than %d characters", domain.ErrInvalidInput, maxNoteLen)
	}
	if resp.AvailableDates == nil {
		resp.AvailableDates = []time.Time{}
	}
	if resp.Preferences == nil {
		resp.Preferences = map[string]string{}
	}

	inv, activity, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := activity.AcceptingResponses(now); err != nil {
		return nil, err
	}

	saved, err := s.invitationRepo.SaveResponse(ctx, inv.ID, resp, now)
	if err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, activity.ID); err != nil {
			s.logger.WarnContext(ctx, "activity cache invalidate failed", "activity_id", activity.ID, "err", err)
		}
	}
	return saved, nil
}

func (s *invitationService) load(ctx context.Context, token string) (*domain.Invitation, *domain.Activity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, domain.ErrNotFound
	}
	inv, err := s.invitationRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get invitation: %w", err)
	}
	activity, err := s.activityRepo.GetByID(ctx, inv.ActivityID)
	if err != nil {
		return nil, nil, fmt.Errorf("get activity: %w", err)
	}
	return inv, activity, nil
}
