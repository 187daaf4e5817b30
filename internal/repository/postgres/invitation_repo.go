package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sunnyside/internal/domain"
)

const invitationColumns = `id, activity_id, email, token, response, available_dates, preferences, note,
		in_guest_list, invited_at, responded_at`

type invitationRepository struct {
	DB *sql.DB
}

func NewInvitationRepository(db *sql.DB) domain.InvitationRepository {
	return &invitationRepository{DB: db}
}

func scanInvitation(row rowScanner) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	var response string
	var dates []string
	var prefs []byte
	var respondedNull sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.ActivityID, &inv.Email, &inv.Token, &response, pq.Array(&dates), &prefs, &inv.Note,
		&inv.InGuestList, &inv.InvitedAt, &respondedNull,
	)
	if err != nil {
		return nil, err
	}
	inv.Response = domain.ResponseKind(response)
	inv.AvailableDates, err = decodeDates(dates)
	if err != nil {
		return nil, err
	}
	inv.Preferences = map[string]string{}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &inv.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if respondedNull.Valid {
		inv.RespondedAt = &respondedNull.Time
	}
	return inv, nil
}

func encodeDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.UTC().Format(time.RFC3339))
	}
	return out
}

func decodeDates(raw []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("decode available date %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Create inserts the invitation. Re-inviting an email already on the activity
// keeps the existing row and returns its ID, token and invitation time.
func (r *invitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (activity_id, email, token, response, invited_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (activity_id, email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, token, invited_at
	`
	return r.DB.QueryRowContext(ctx, query, inv.ActivityID, inv.Email, inv.Token, string(inv.Response), inv.InvitedAt).
		Scan(&inv.ID, &inv.Token, &inv.InvitedAt)
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *invitationRepository) ListByActivityID(ctx context.Context, activityID string) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE activity_id = $1
		ORDER BY invited_at ASC, email ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invs := make([]*domain.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (r *invitationRepository) SaveResponse(ctx context.Context, id string, resp domain.InvitationResponse, respondedAt time.Time) (*domain.Invitation, error) {
	prefs := resp.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	query := `
		UPDATE invitations
		SET response = $1, available_dates = $2, preferences = $3, note = $4, responded_at = $5
		WHERE id = $6
		RETURNING ` + invitationColumns
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx, query,
		string(resp.Response), pq.Array(encodeDates(resp.AvailableDates)), prefsJSON, resp.Note, respondedAt, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return inv, nil
}
