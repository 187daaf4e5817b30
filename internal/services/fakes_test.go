package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sunnyside/internal/domain"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeUserRepo implements domain.UserRepository for tests.
type fakeUserRepo struct {
	byID      map[string]*domain.User
	createErr error
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	f := &fakeUserRepo{byID: make(map[string]*domain.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.byID {
		if u.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(f.byID)+1)
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

// fakePasswordHasher implements domain.PasswordHasher for tests.
type fakePasswordHasher struct {
	salt string
}

func (f *fakePasswordHasher) GenerateSalt() (string, error) { return f.salt, nil }
func (f *fakePasswordHasher) Hash(salt, password string) (string, error) {
	return "hash-" + salt + "-" + password, nil
}
func (f *fakePasswordHasher) Compare(hash, salt, password string) error {
	if hash != "hash-"+salt+"-"+password {
		return errors.New("mismatch")
	}
	return nil
}

// fakeTokenIssuer implements domain.TokenIssuer for tests.
type fakeTokenIssuer struct {
	lastExpiry time.Duration
}

func (f *fakeTokenIssuer) Issue(userID, email string, expiry time.Duration) (string, error) {
	f.lastExpiry = expiry
	return "token-" + userID, nil
}

// fakeEmailService records every email it is asked to send.
type fakeEmailService struct {
	mu          sync.Mutex
	welcome     []*domain.WelcomeEmailData
	invitations []*domain.InvitationEmailData
	reminders   []*domain.InvitationEmailData
	finalized   []*domain.FinalizedEmailData
	failFor     map[string]bool
}

func (f *fakeEmailService) fail(email string) error {
	if f.failFor[email] {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeEmailService) SendWelcome(ctx context.Context, data *domain.WelcomeEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(data.Email); err != nil {
		return err
	}
	f.welcome = append(f.welcome, data)
	return nil
}

func (f *fakeEmailService) SendInvitation(ctx context.Context, data *domain.InvitationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(data.Email); err != nil {
		return err
	}
	f.invitations = append(f.invitations, data)
	return nil
}

func (f *fakeEmailService) SendReminder(ctx context.Context, data *domain.InvitationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(data.Email); err != nil {
		return err
	}
	f.reminders = append(f.reminders, data)
	return nil
}

func (f *fakeEmailService) SendFinalized(ctx context.Context, data *domain.FinalizedEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(data.Email); err != nil {
		return err
	}
	f.finalized = append(f.finalized, data)
	return nil
}

// fakeActivityRepo implements domain.ActivityRepository for tests.
type fakeActivityRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Activity
	getCalls int
	getDelay time.Duration
	// afterGet runs once a GetByID has read the row, before it returns.
	afterGet func()
	// guests receives guest list writes from Finalize.
	guests      *fakeInvitationRepo
	finalizeErr error
}

func newFakeActivityRepo(activities ...*domain.Activity) *fakeActivityRepo {
	f := &fakeActivityRepo{byID: make(map[string]*domain.Activity)}
	for _, a := range activities {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeActivityRepo) Create(ctx context.Context, a *domain.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = fmt.Sprintf("act-%d", len(f.byID)+1)
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeActivityRepo) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	f.mu.Lock()
	f.getCalls++
	a, ok := f.byID[id]
	var cp domain.Activity
	if ok {
		cp = *a
	}
	hook := f.afterGet
	f.mu.Unlock()
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		hook()
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cp, nil
}

func (f *fakeActivityRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *fakeActivityRepo) ListByOrganizerID(ctx context.Context, organizerID string, params domain.PaginationParams) ([]*domain.Activity, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Activity, 0)
	for _, a := range f.byID {
		if a.OrganizerID == organizerID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (f *fakeActivityRepo) ListAwaitingReminder(ctx context.Context, now time.Time) ([]*domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Activity, 0)
	for _, a := range f.byID {
		if a.Status == domain.ActivityStatusCollecting && a.ReminderSentAt == nil &&
			a.ResponseDeadline != nil && a.ResponseDeadline.After(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) Update(ctx context.Context, id string, upd domain.ActivityUpdate) (*domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.Status = upd.Status
	a.ActivityDate = upd.ActivityDate
	a.ResponseDeadline = upd.ResponseDeadline
	a.ReminderSentAt = upd.ReminderSentAt
	a.Venue = upd.Venue
	cp := *a
	return &cp, nil
}

func (f *fakeActivityRepo) MarkReminderSent(ctx context.Context, id string, responseDeadline, sentAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.Status != domain.ActivityStatusCollecting || a.ReminderSentAt != nil ||
		a.ResponseDeadline == nil || !a.ResponseDeadline.Equal(responseDeadline) {
		return false, nil
	}
	a.ReminderSentAt = &sentAt
	return true, nil
}

func (f *fakeActivityRepo) Finalize(ctx context.Context, id string, upd domain.ActivityUpdate, guestInvitationIDs []string) (*domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	a, ok := f.byID[id]
	if !ok || a.Status != domain.ActivityStatusCollecting {
		return nil, domain.ErrActivityClosed
	}
	if f.guests != nil {
		f.guests.markGuests(id, guestInvitationIDs)
	}
	a.Status = upd.Status
	a.ActivityDate = upd.ActivityDate
	a.ResponseDeadline = upd.ResponseDeadline
	a.ReminderSentAt = upd.ReminderSentAt
	a.Venue = upd.Venue
	cp := *a
	return &cp, nil
}

// fakeInvitationRepo implements domain.InvitationRepository for tests.
type fakeInvitationRepo struct {
	mu        sync.Mutex
	items     []*domain.Invitation
	createErr map[string]error
}

func (f *fakeInvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[inv.Email]; err != nil {
		return err
	}
	for _, existing := range f.items {
		if existing.ActivityID == inv.ActivityID && existing.Email == inv.Email {
			inv.ID = existing.ID
			inv.Token = existing.Token
			inv.InvitedAt = existing.InvitedAt
			return nil
		}
	}
	inv.ID = fmt.Sprintf("inv-%d", len(f.items)+1)
	cp := *inv
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeInvitationRepo) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.items {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInvitationRepo) ListByActivityID(ctx context.Context, activityID string) ([]*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Invitation, 0)
	for _, inv := range f.items {
		if inv.ActivityID == activityID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) SaveResponse(ctx context.Context, id string, resp domain.InvitationResponse, respondedAt time.Time) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.items {
		if inv.ID == id {
			inv.Response = resp.Response
			inv.AvailableDates = resp.AvailableDates
			inv.Preferences = resp.Preferences
			inv.Note = resp.Note
			inv.RespondedAt = &respondedAt
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeInvitationRepo) markGuests(activityID string, ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		chosen[id] = true
	}
	for _, inv := range f.items {
		if inv.ActivityID == activityID {
			inv.InGuestList = chosen[inv.ID]
		}
	}
}

// fakeCache implements domain.ActivityCache in memory.
type fakeCache struct {
	mu          sync.Mutex
	items       map[string]*domain.ActivityDetails
	versions    map[string]int64
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]*domain.ActivityDetails), versions: make(map[string]int64)}
}

func (f *fakeCache) Get(ctx context.Context, id string) (*domain.ActivityDetails, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], f.versions[id], nil
}

func (f *fakeCache) Set(ctx context.Context, d *domain.ActivityDetails, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versions[d.Activity.ID] != version {
		return nil
	}
	f.items[d.Activity.ID] = d
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	f.versions[id]++
	f.invalidated = append(f.invalidated, id)
	return nil
}

// fakeInterpreter implements domain.IntentInterpreter for tests.
type fakeInterpreter struct {
	intent *domain.ActivityIntent
	err    error
}

func (f *fakeInterpreter) Interpret(ctx context.Context, text string) (*domain.ActivityIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.intent != nil {
		return f.intent, nil
	}
	return &domain.ActivityIntent{Title: text}, nil
}

// fakeExporter implements domain.CalendarExporter for tests.
type fakeExporter struct {
	guests []*domain.Invitation
}

func (f *fakeExporter) Export(activity *domain.Activity, organizer *domain.User, guests []*domain.Invitation) ([]byte, error) {
	f.guests = guests
	return []byte("BEGIN:VCALENDAR\r\nSUMMARY:" + activity.Title + "\r\nEND:VCALENDAR\r\n"), nil
}
