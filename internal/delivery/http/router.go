package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"sunnyside/internal/delivery/http/controllers"
	"sunnyside/internal/delivery/http/helpers"
)

// NewRouter registers every API route. requireAuth wraps the organizer routes;
// invitation routes are authorized by their token alone.
func NewRouter(
	userController *controllers.UserController,
	activityController *controllers.ActivityController,
	invitationController *controllers.InvitationController,
	requireAuth func(http.HandlerFunc) http.HandlerFunc,
) *http.ServeMux {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /auth/signup", userController.SignUp)
	mux.HandleFunc("POST /auth/login", userController.Login)
	mux.HandleFunc("GET /users/me", requireAuth(userController.GetMe))

	// Activities (organizer)
	mux.HandleFunc("POST /activities", requireAuth(activityController.CreateActivity))
	mux.HandleFunc("GET /activities", requireAuth(activityController.ListActivities))
	mux.HandleFunc("GET /activities/{activityID}", requireAuth(activityController.GetActivity))
	mux.HandleFunc("PATCH /activities/{activityID}/date", requireAuth(activityController.SetActivityDate))
	mux.HandleFunc("POST /activities/{activityID}/deadline/extend", requireAuth(activityController.ExtendDeadline))
	mux.HandleFunc("POST /activities/{activityID}/invitations", requireAuth(activityController.InviteGuests))
	mux.HandleFunc("GET /activities/{activityID}/invitations", requireAuth(activityController.ListInvitations))
	mux.HandleFunc("POST /activities/{activityID}/finalize", requireAuth(activityController.FinalizeActivity))
	mux.HandleFunc("POST /activities/{activityID}/cancel", requireAuth(activityController.CancelActivity))
	mux.HandleFunc("GET /activities/{activityID}/calendar.ics", requireAuth(activityController.CalendarFile))

	// Invitations (invitee)
	mux.HandleFunc("GET /invitations/{token}", invitationController.GetInvitation)
	mux.HandleFunc("POST /invitations/{token}/response", invitationController.Respond)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
