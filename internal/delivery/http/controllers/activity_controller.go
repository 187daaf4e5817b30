package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sunnyside/internal/delivery/http/helpers"
	"sunnyside/internal/domain"
)

const (
	maxDescriptionLen = 2000
	maxInvitesPerCall = 50
)

// CreateActivityRequest is the request body for POST /activities.
type CreateActivityRequest struct {
	Description  string     `json:"description"`
	ActivityDate *time.Time `json:"activity_date"`
}

// Validate implements Validator.
func (c CreateActivityRequest) Validate() []string {
	var errs []string
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		errs = append(errs, "description is required")
	} else if len(desc) > maxDescriptionLen {
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	if c.ActivityDate != nil && c.ActivityDate.IsZero() {
		errs = append(errs, "activity_date must be a valid RFC 3339 timestamp")
	}
	return errs
}

// SetActivityDateRequest is the request body for PATCH /activities/{activityID}/date.
type SetActivityDateRequest struct {
	ActivityDate time.Time `json:"activity_date"`
}

// Validate implements Validator.
func (s SetActivityDateRequest) Validate() []string {
	if s.ActivityDate.IsZero() {
		return []string{"activity_date is required"}
	}
	return nil
}

// InviteGuestsRequest is the request body for POST /activities/{activityID}/invitations.
type InviteGuestsRequest struct {
	Emails []string `json:"emails"`
}

// Validate implements Validator.
func (i InviteGuestsRequest) Validate() []string {
	switch {
	case len(i.Emails) == 0:
		return []string{"emails is required"}
	case len(i.Emails) > maxInvitesPerCall:
		return []string{fmt.Sprintf("at most %d emails per request", maxInvitesPerCall)}
	}
	return nil
}

// InviteGuestsResponse reports how many invitations went out.
type InviteGuestsResponse struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed"`
}

// FinalizeActivityRequest is the request body for POST /activities/{activityID}/finalize.
type FinalizeActivityRequest struct {
	ActivityDate       time.Time `json:"activity_date"`
	Venue              string    `json:"venue"`
	GuestInvitationIDs []string  `json:"guest_invitation_ids"`
}

// Validate implements Validator.
func (f FinalizeActivityRequest) Validate() []string {
	var errs []string
	if f.ActivityDate.IsZero() {
		errs = append(errs, "activity_date is required")
	}
	for _, id := range f.GuestInvitationIDs {
		if !uuidRegex.MatchString(id) {
			errs = append(errs, fmt.Sprintf("invalid guest invitation id %q", id))
		}
	}
	return errs
}

// ActivityListResponse is the data payload for GET /activities.
type ActivityListResponse struct {
	Items      []*domain.Activity     `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ActivitySuccessResponse is the success envelope for endpoints returning an activity.
type ActivitySuccessResponse struct {
	Data  *domain.Activity  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ActivityDetailsSuccessResponse is the success envelope for endpoints returning activity details.
type ActivityDetailsSuccessResponse struct {
	Data  *domain.ActivityDetails `json:"data"`
	Error *helpers.APIError       `json:"error"`
}

// ActivityListSuccessResponse is the success envelope for GET /activities.
type ActivityListSuccessResponse struct {
	Data  ActivityListResponse `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// InviteGuestsSuccessResponse is the success envelope for POST /activities/{activityID}/invitations.
type InviteGuestsSuccessResponse struct {
	Data  InviteGuestsResponse `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// InvitationListSuccessResponse is the success envelope for GET /activities/{activityID}/invitations.
type InvitationListSuccessResponse struct {
	Data  []*domain.Invitation `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// ActivityController serves the organizer side of activity planning.
type ActivityController struct {
	Logger  *slog.Logger
	Service domain.ActivityService
}

func NewActivityController(logger *slog.Logger, svc domain.ActivityService) *ActivityController {
	return &ActivityController{
		Logger:  logger,
		Service: svc,
	}
}

// CreateActivity godoc
// @Summary Create an activity
// @Description Create an activity from a free-text description. The description is interpreted into a title, type and optional suggested date. An explicit activity_date wins over the suggested one; when a date is known the response deadline is computed from it.
// @Tags activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateActivityRequest true "Activity description"
// @Success 201 {object} controllers.ActivitySuccessResponse "data contains the created activity"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities [post]
func (c *ActivityController) CreateActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req CreateActivityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	activity, err := c.Service.CreateActivity(r.Context(), userID, req.Description, req.ActivityDate)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, activity)
}

// ListActivities godoc
// @Summary List my activities
// @Description Paginated list of activities organized by the authenticated user, newest first.
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ActivityListSuccessResponse "data contains items and pagination"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities [get]
func (c *ActivityController) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	items, total, err := c.Service.ListMyActivities(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, ActivityListResponse{
		Items:      items,
		Pagination: helpers.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}

// GetActivity godoc
// @Summary Get an activity
// @Description Returns the activity, its invitations and the response deadline rendered for the current time (text, status active/warning/passed).
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Success 200 {object} controllers.ActivityDetailsSuccessResponse "data contains activity, invitations and deadline"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID} [get]
func (c *ActivityController) GetActivity(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	details, err := c.Service.GetActivity(r.Context(), activityID, userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, details)
}

// SetActivityDate godoc
// @Summary Set the activity date
// @Description Sets the activity date and recomputes the response deadline from the current time: 2 hours when the activity is a day or less away, 24 hours at two days, 48 hours at three days or more.
// @Tags activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Param body body SetActivityDateRequest true "New activity date"
// @Success 200 {object} controllers.ActivitySuccessResponse "data contains the updated activity"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/date [patch]
func (c *ActivityController) SetActivityDate(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	var req SetActivityDateRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	activity, err := c.Service.SetActivityDate(r.Context(), activityID, userID, req.ActivityDate)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, activity)
}

// ExtendDeadline godoc
// @Summary Extend the response deadline
// @Description Pushes the response deadline out by 24 hours (from now when no deadline is set) and re-arms the reminder.
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Success 200 {object} controllers.ActivitySuccessResponse "data contains the updated activity"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/deadline/extend [post]
func (c *ActivityController) ExtendDeadline(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	activity, err := c.Service.ExtendDeadline(r.Context(), activityID, userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, activity)
}

// InviteGuests godoc
// @Summary Invite guests
// @Description Creates one invitation per email and sends each invitee a response link with the remaining time. Re-inviting an address resends its existing link. Invalid or undeliverable addresses are reported in failed.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Param body body InviteGuestsRequest true "Invitee emails"
// @Success 200 {object} controllers.InviteGuestsSuccessResponse "data contains sent count and failed emails"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 410 {object} helpers.APIResponse "error.code: gone"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/invitations [post]
func (c *ActivityController) InviteGuests(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	var req InviteGuestsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	sent, failed, err := c.Service.InviteGuests(r.Context(), activityID, userID, req.Emails)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	if failed == nil {
		failed = []string{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, InviteGuestsResponse{Sent: sent, Failed: failed})
}

// ListInvitations godoc
// @Summary List invitations
// @Description Lists every invitation of the activity with its response.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Success 200 {object} controllers.InvitationListSuccessResponse "data contains invitations"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/invitations [get]
func (c *ActivityController) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	invitations, err := c.Service.ListInvitations(r.Context(), activityID, userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, invitations)
}

// FinalizeActivity godoc
// @Summary Finalize an activity
// @Description Fixes the date and venue, records the guest list and emails the chosen guests. Responses are closed afterwards.
// @Tags activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Param body body FinalizeActivityRequest true "Final plan"
// @Success 200 {object} controllers.ActivityDetailsSuccessResponse "data contains the finalized activity"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/finalize [post]
func (c *ActivityController) FinalizeActivity(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	var req FinalizeActivityRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	details, err := c.Service.FinalizeActivity(r.Context(), activityID, userID, domain.FinalizeInput{
		Date:               req.ActivityDate,
		Venue:              req.Venue,
		GuestInvitationIDs: req.GuestInvitationIDs,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, details)
}

// CancelActivity godoc
// @Summary Cancel an activity
// @Tags activities
// @Produce json
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Success 200 {object} controllers.ActivitySuccessResponse "data contains the cancelled activity"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/cancel [post]
func (c *ActivityController) CancelActivity(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	activity, err := c.Service.CancelActivity(r.Context(), activityID, userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, activity)
}

// CalendarFile godoc
// @Summary Download the activity as iCalendar
// @Description Returns an .ics file for the activity. Requires a date to be set.
// @Tags activities
// @Produce text/calendar
// @Security BearerAuth
// @Param activityID path string true "Activity ID (UUID)"
// @Success 200 {file} file "iCalendar document"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /activities/{activityID}/calendar.ics [get]
func (c *ActivityController) CalendarFile(w http.ResponseWriter, r *http.Request) {
	userID, activityID, ok := c.ownerAndActivity(w, r)
	if !ok {
		return
	}
	ics, err := c.Service.CalendarFile(r.Context(), activityID, userID)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="activity-%s.ics"`, activityID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ics)
}

func (c *ActivityController) ownerAndActivity(w http.ResponseWriter, r *http.Request) (userID, activityID string, ok bool) {
	userID, ok = requireUserID(w, r)
	if !ok {
		return "", "", false
	}
	activityID, ok = pathUUID(w, r, "activityID")
	if !ok {
		return "", "", false
	}
	return userID, activityID, true
}
