package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunnyside/internal/deadline"
	"sunnyside/internal/delivery/http/helpers"
	"sunnyside/internal/delivery/http/middleware"
	"sunnyside/internal/domain"
)

const (
	testActivityID = "6f1c1f8e-2f7e-4a59-9a37-5b8a3f0f6f01"
	testGuestID    = "0a7d5c3e-8b1f-4c62-8e0e-2d9f4b1c7a11"
)

// fakeActivityService implements domain.ActivityService for handler tests.
type fakeActivityService struct {
	err error

	activity *domain.Activity
	details  *domain.ActivityDetails
	list     []*domain.Activity
	total    int
	sent     int
	failed   []string
	ics      []byte

	lastOrganizer string
	lastDate      *time.Time
	lastRawInput  string
	lastParams    domain.PaginationParams
	lastEmails    []string
	lastFinalize  domain.FinalizeInput
}

func (f *fakeActivityService) CreateActivity(ctx context.Context, organizerID, rawInput string, activityDate *time.Time) (*domain.Activity, error) {
	f.lastOrganizer, f.lastRawInput, f.lastDate = organizerID, rawInput, activityDate
	return f.activity, f.err
}

func (f *fakeActivityService) GetActivity(ctx context.Context, activityID, organizerID string) (*domain.ActivityDetails, error) {
	f.lastOrganizer = organizerID
	return f.details, f.err
}

func (f *fakeActivityService) ListMyActivities(ctx context.Context, organizerID string, params domain.PaginationParams) ([]*domain.Activity, int, error) {
	f.lastOrganizer, f.lastParams = organizerID, params
	return f.list, f.total, f.err
}

func (f *fakeActivityService) SetActivityDate(ctx context.Context, activityID, organizerID string, date time.Time) (*domain.Activity, error) {
	f.lastDate = &date
	return f.activity, f.err
}

func (f *fakeActivityService) ExtendDeadline(ctx context.Context, activityID, organizerID string) (*domain.Activity, error) {
	return f.activity, f.err
}

func (f *fakeActivityService) InviteGuests(ctx context.Context, activityID, organizerID string, emails []string) (int, []string, error) {
	f.lastEmails = emails
	return f.sent, f.failed, f.err
}

func (f *fakeActivityService) ListInvitations(ctx context.Context, activityID, organizerID string) ([]*domain.Invitation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details.Invitations, nil
}

func (f *fakeActivityService) FinalizeActivity(ctx context.Context, activityID, organizerID string, in domain.FinalizeInput) (*domain.ActivityDetails, error) {
	f.lastFinalize = in
	return f.details, f.err
}

func (f *fakeActivityService) CancelActivity(ctx context.Context, activityID, organizerID string) (*domain.Activity, error) {
	return f.activity, f.err
}

func (f *fakeActivityService) CalendarFile(ctx context.Context, activityID, organizerID string) ([]byte, error) {
	return f.ics, f.err
}

// serveActivity builds a request routed through a ServeMux so path values resolve.
func serveActivity(t *testing.T, svc domain.ActivityService, pattern, method, target, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	ctrl := NewActivityController(testLogger(), svc)
	handlers := map[string]http.HandlerFunc{
		"POST /activities":                                  ctrl.CreateActivity,
		"GET /activities":                                   ctrl.ListActivities,
		"GET /activities/{activityID}":                      ctrl.GetActivity,
		"PATCH /activities/{activityID}/date":               ctrl.SetActivityDate,
		"POST /activities/{activityID}/deadline/extend":     ctrl.ExtendDeadline,
		"POST /activities/{activityID}/invitations":         ctrl.InviteGuests,
		"GET /activities/{activityID}/invitations":          ctrl.ListInvitations,
		"POST /activities/{activityID}/finalize":            ctrl.FinalizeActivity,
		"POST /activities/{activityID}/cancel":              ctrl.CancelActivity,
		"GET /activities/{activityID}/calendar.ics":         ctrl.CalendarFile,
	}
	handler, ok := handlers[pattern]
	require.True(t, ok, "unknown pattern %s", pattern)
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)

	req := httptest.NewRequest(method, "http://test"+target, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(middleware.SetUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestActivityController_CreateActivity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	dl := now.Add(48 * time.Hour)
	fake := &fakeActivityService{activity: &domain.Activity{ID: testActivityID, Title: "Picnic", ResponseDeadline: &dl}}

	rr := serveActivity(t, fake, "POST /activities", http.MethodPost, "/activities",
		`{"description":"picnic in the park","activity_date":"2024-06-04T12:00:00Z"}`, "org")

	require.Equal(t, http.StatusCreated, rr.Code)
	var a domain.Activity
	envelope := decodeEnvelope(t, rr, &a)
	require.Nil(t, envelope.Error)
	assert.Equal(t, "Picnic", a.Title)
	assert.Equal(t, "org", fake.lastOrganizer)
	assert.Equal(t, "picnic in the park", fake.lastRawInput)
	require.NotNil(t, fake.lastDate)
	assert.True(t, now.Add(72*time.Hour).Equal(*fake.lastDate))
}

func TestActivityController_CreateActivity_Errors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		userID       string
		fakeErr      error
		wantStatus   int
		wantBodyCode string
	}{
		{"unauthenticated", `{"description":"x"}`, "", nil, http.StatusUnauthorized, helpers.ErrCodeUnauthorized},
		{"missing description", `{"description":"   "}`, "org", nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
		{"malformed date", `{"description":"x","activity_date":"tomorrow"}`, "org", nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
		{"interpreter down", `{"description":"x"}`, "org", assert.AnError, http.StatusInternalServerError, helpers.ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveActivity(t, &fakeActivityService{err: tt.fakeErr}, "POST /activities", http.MethodPost, "/activities", tt.body, tt.userID)
			require.Equal(t, tt.wantStatus, rr.Code)
			envelope := decodeEnvelope(t, rr, nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
		})
	}
}

func TestActivityController_ListActivities(t *testing.T) {
	fake := &fakeActivityService{list: []*domain.Activity{{ID: testActivityID}}, total: 41}

	rr := serveActivity(t, fake, "GET /activities", http.MethodGet, "/activities?page=2&page_size=20", "", "org")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ActivityListResponse
	decodeEnvelope(t, rr, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: 20, Total: 41, TotalPages: 3}, resp.Pagination)
	assert.Equal(t, domain.PaginationParams{Page: 2, PageSize: 20}, fake.lastParams)
}

func TestActivityController_GetActivity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	info := deadline.Describe(now.Add(90*time.Minute), now)
	details := &domain.ActivityDetails{
		Activity:    &domain.Activity{ID: testActivityID, OrganizerID: "org"},
		Invitations: []*domain.Invitation{},
		Deadline:    &info,
	}

	tests := []struct {
		name         string
		target       string
		fakeErr      error
		wantStatus   int
		wantBodyCode string
	}{
		{"success", "/activities/" + testActivityID, nil, http.StatusOK, ""},
		{"bad id", "/activities/not-a-uuid", nil, http.StatusBadRequest, helpers.ErrCodeBadRequest},
		{"not found", "/activities/" + testActivityID, domain.ErrNotFound, http.StatusNotFound, helpers.ErrCodeNotFound},
		{"not owner", "/activities/" + testActivityID, domain.ErrForbidden, http.StatusForbidden, helpers.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeActivityService{details: details, err: tt.fakeErr}
			rr := serveActivity(t, fake, "GET /activities/{activityID}", http.MethodGet, tt.target, "", "org")

			require.Equal(t, tt.wantStatus, rr.Code)
			var got domain.ActivityDetails
			envelope := decodeEnvelope(t, rr, &got)
			if tt.wantStatus == http.StatusOK {
				require.Nil(t, envelope.Error)
				require.NotNil(t, got.Deadline)
				assert.Equal(t, deadline.StatusWarning, got.Deadline.Status)
				assert.Equal(t, "2 hours left", got.Deadline.Text)
				return
			}
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
		})
	}
}

func TestActivityController_SetActivityDate(t *testing.T) {
	fake := &fakeActivityService{activity: &domain.Activity{ID: testActivityID}}

	rr := serveActivity(t, fake, "PATCH /activities/{activityID}/date", http.MethodPatch,
		"/activities/"+testActivityID+"/date", `{"activity_date":"2024-06-02T10:00:00+02:00"}`, "org")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, fake.lastDate)
	assert.True(t, time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC).Equal(*fake.lastDate))

	rr = serveActivity(t, fake, "PATCH /activities/{activityID}/date", http.MethodPatch,
		"/activities/"+testActivityID+"/date", `{}`, "org")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	fake.err = domain.ErrActivityClosed
	rr = serveActivity(t, fake, "PATCH /activities/{activityID}/date", http.MethodPatch,
		"/activities/"+testActivityID+"/date", `{"activity_date":"2024-06-02T10:00:00Z"}`, "org")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestActivityController_ExtendDeadline(t *testing.T) {
	dl := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	fake := &fakeActivityService{activity: &domain.Activity{ID: testActivityID, ResponseDeadline: &dl}}

	rr := serveActivity(t, fake, "POST /activities/{activityID}/deadline/extend", http.MethodPost,
		"/activities/"+testActivityID+"/deadline/extend", "", "org")

	require.Equal(t, http.StatusOK, rr.Code)
	var a domain.Activity
	decodeEnvelope(t, rr, &a)
	require.NotNil(t, a.ResponseDeadline)
	assert.True(t, dl.Equal(*a.ResponseDeadline))
}

func TestActivityController_InviteGuests(t *testing.T) {
	fake := &fakeActivityService{sent: 1, failed: []string{"nope"}}

	rr := serveActivity(t, fake, "POST /activities/{activityID}/invitations", http.MethodPost,
		"/activities/"+testActivityID+"/invitations", `{"emails":["bea@example.com","nope"]}`, "org")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp InviteGuestsResponse
	decodeEnvelope(t, rr, &resp)
	assert.Equal(t, 1, resp.Sent)
	assert.Equal(t, []string{"nope"}, resp.Failed)
	assert.Equal(t, []string{"bea@example.com", "nope"}, fake.lastEmails)

	rr = serveActivity(t, fake, "POST /activities/{activityID}/invitations", http.MethodPost,
		"/activities/"+testActivityID+"/invitations", `{"emails":[]}`, "org")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	fake.err = domain.ErrDeadlinePassed
	rr = serveActivity(t, fake, "POST /activities/{activityID}/invitations", http.MethodPost,
		"/activities/"+testActivityID+"/invitations", `{"emails":["bea@example.com"]}`, "org")
	require.Equal(t, http.StatusGone, rr.Code)
	envelope := decodeEnvelope(t, rr, nil)
	assert.Equal(t, helpers.ErrCodeGone, envelope.Error.Code)
}

func TestActivityController_ListInvitations(t *testing.T) {
	fake := &fakeActivityService{details: &domain.ActivityDetails{
		Invitations: []*domain.Invitation{{ID: testGuestID, Email: "bea@example.com", Token: "secret-token", Response: domain.ResponseMaybe}},
	}}

	rr := serveActivity(t, fake, "GET /activities/{activityID}/invitations", http.MethodGet,
		"/activities/"+testActivityID+"/invitations", "", "org")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-token")
	var invs []*domain.Invitation
	decodeEnvelope(t, rr, &invs)
	require.Len(t, invs, 1)
	assert.Equal(t, domain.ResponseMaybe, invs[0].Response)
}

func TestActivityController_FinalizeActivity(t *testing.T) {
	fake := &fakeActivityService{details: &domain.ActivityDetails{
		Activity: &domain.Activity{ID: testActivityID, Status: domain.ActivityStatusFinalized},
	}}

	rr := serveActivity(t, fake, "POST /activities/{activityID}/finalize", http.MethodPost,
		"/activities/"+testActivityID+"/finalize",
		`{"activity_date":"2024-06-05T18:00:00Z","venue":"Harbour Cafe","guest_invitation_ids":["`+testGuestID+`"]}`, "org")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Harbour Cafe", fake.lastFinalize.Venue)
	assert.Equal(t, []string{testGuestID}, fake.lastFinalize.GuestInvitationIDs)
	assert.True(t, time.Date(2024, 6, 5, 18, 0, 0, 0, time.UTC).Equal(fake.lastFinalize.Date))

	rr = serveActivity(t, fake, "POST /activities/{activityID}/finalize", http.MethodPost,
		"/activities/"+testActivityID+"/finalize", `{"activity_date":"2024-06-05T18:00:00Z","guest_invitation_ids":["x"]}`, "org")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActivityController_CancelActivity(t *testing.T) {
	fake := &fakeActivityService{activity: &domain.Activity{ID: testActivityID, Status: domain.ActivityStatusCancelled}}

	rr := serveActivity(t, fake, "POST /activities/{activityID}/cancel", http.MethodPost,
		"/activities/"+testActivityID+"/cancel", "", "org")
	require.Equal(t, http.StatusOK, rr.Code)

	fake.err = domain.ErrActivityClosed
	rr = serveActivity(t, fake, "POST /activities/{activityID}/cancel", http.MethodPost,
		"/activities/"+testActivityID+"/cancel", "", "org")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestActivityController_CalendarFile(t *testing.T) {
	fake := &fakeActivityService{ics: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")}

	rr := serveActivity(t, fake, "GET /activities/{activityID}/calendar.ics", http.MethodGet,
		"/activities/"+testActivityID+"/calendar.ics", "", "org")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "activity-"+testActivityID+".ics")
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", rr.Body.String())

	fake.err = domain.ErrInvalidInput
	rr = serveActivity(t, fake, "GET /activities/{activityID}/calendar.ics", http.MethodGet,
		"/activities/"+testActivityID+"/calendar.ics", "", "org")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
