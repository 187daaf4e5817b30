package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"sunnyside/internal/delivery/http/helpers"
	"sunnyside/internal/domain"
)

const maxPreferences = 20

// RespondRequest is the request body for POST /invitations/{token}/response.
type RespondRequest struct {
	Response       string            `json:"response"`
	AvailableDates []time.Time       `json:"available_dates"`
	Preferences    map[string]string `json:"preferences"`
	Note           string            `json:"note"`
}

// Validate implements Validator.
func (req RespondRequest) Validate() []string {
	var errs []string
	if !domain.ResponseKind(req.Response).Valid() {
		errs = append(errs, `response must be "available", "maybe" or "unavailable"`)
	}
	if len(req.Preferences) > maxPreferences {
		errs = append(errs, "too many preferences")
	}
	return errs
}

// InvitationViewSuccessResponse is the success envelope for GET /invitations/{token}.
type InvitationViewSuccessResponse struct {
	Data  *domain.InvitationView `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// InvitationSuccessResponse is the success envelope for POST /invitations/{token}/response.
type InvitationSuccessResponse struct {
	Data  *domain.Invitation `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// InvitationController serves invitees. The invitation token in the path is
// the only credential.
type InvitationController struct {
	Logger  *slog.Logger
	Service domain.InvitationService
}

func NewInvitationController(logger *slog.Logger, svc domain.InvitationService) *InvitationController {
	return &InvitationController{
		Logger:  logger,
		Service: svc,
	}
}

// GetInvitation godoc
// @Summary Open an invitation
// @Description Returns the invitation, the activity summary and the response deadline rendered for the current time.
// @Tags invitations
// @Produce json
// @Param token path string true "Invitation token"
// @Success 200 {object} controllers.InvitationViewSuccessResponse "data contains invitation, activity and deadline"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{token} [get]
func (c *InvitationController) GetInvitation(w http.ResponseWriter, r *http.Request) {
	view, err := c.Service.GetInvitation(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// Respond godoc
// @Summary Answer an invitation
// @Description Records availability, preferred dates, preferences and a note. Rejected with 410 once the response deadline has passed and with 409 when the activity is finalized or cancelled.
// @Tags invitations
// @Accept json
// @Produce json
// @Param token path string true "Invitation token"
// @Param body body RespondRequest true "Response"
// @Success 200 {object} controllers.InvitationSuccessResponse "data contains the updated invitation"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 410 {object} helpers.APIResponse "error.code: gone"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{token}/response [post]
func (c *InvitationController) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	inv, err := c.Service.Respond(r.Context(), r.PathValue("token"), domain.InvitationResponse{
		Response:       domain.ResponseKind(req.Response),
		AvailableDates: req.AvailableDates,
		Preferences:    req.Preferences,
		Note:           req.Note,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, inv)
}
