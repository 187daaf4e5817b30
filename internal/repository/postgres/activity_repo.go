package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sunnyside/internal/domain"
)

const activityColumns = `id, organizer_id, raw_input, title, activity_type, location, status,
		activity_date, response_deadline, reminder_sent_at, venue, created_at, updated_at`

type activityRepository struct {
	DB *sql.DB
}

func NewActivityRepository(db *sql.DB) domain.ActivityRepository {
	return &activityRepository{DB: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	a := &domain.Activity{}
	var dateNull, deadlineNull, reminderNull sql.NullTime
	var venueNull sql.NullString
	var status string
	err := row.Scan(
		&a.ID, &a.OrganizerID, &a.RawInput, &a.Title, &a.ActivityType, &a.Location, &status,
		&dateNull, &deadlineNull, &reminderNull, &venueNull, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.ActivityStatus(status)
	if dateNull.Valid {
		a.ActivityDate = &dateNull.Time
	}
	if deadlineNull.Valid {
		a.ResponseDeadline = &deadlineNull.Time
	}
	if reminderNull.Valid {
		a.ReminderSentAt = &reminderNull.Time
	}
	if venueNull.Valid {
		a.Venue = &venueNull.String
	}
	return a, nil
}

func (r *activityRepository) Create(ctx context.Context, a *domain.Activity) error {
	query := `
		INSERT INTO activities (organizer_id, raw_input, title, activity_type, location, status,
			activity_date, response_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		a.OrganizerID, a.RawInput, a.Title, a.ActivityType, a.Location, string(a.Status),
		a.ActivityDate, a.ResponseDeadline, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	a, err := scanActivity(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *activityRepository) ListByOrganizerID(ctx context.Context, organizerID string, params domain.PaginationParams) ([]*domain.Activity, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE organizer_id = $1`, organizerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE organizer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	activities, err := r.list(ctx, query, organizerID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}

func (r *activityRepository) ListAwaitingReminder(ctx context.Context, now time.Time) ([]*domain.Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE status = 'collecting'
			AND reminder_sent_at IS NULL
			AND response_deadline > $1
		ORDER BY response_deadline ASC
	`
	return r.list(ctx, query, now)
}

func (r *activityRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	activities := make([]*domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

const updateActivity = `
	UPDATE activities
	SET status = $1, activity_date = $2, response_deadline = $3, reminder_sent_at = $4, venue = $5, updated_at = NOW()
	WHERE id = $6`

func (r *activityRepository) Update(ctx context.Context, id string, upd domain.ActivityUpdate) (*domain.Activity, error) {
	query := updateActivity + ` RETURNING ` + activityColumns
	a, err := scanActivity(r.DB.QueryRowContext(ctx, query,
		string(upd.Status), upd.ActivityDate, upd.ResponseDeadline, upd.ReminderSentAt, upd.Venue, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *activityRepository) MarkReminderSent(ctx context.Context, id string, responseDeadline, sentAt time.Time) (bool, error) {
	query := `
		UPDATE activities
		SET reminder_sent_at = $1, updated_at = NOW()
		WHERE id = $2
			AND status = 'collecting'
			AND reminder_sent_at IS NULL
			AND response_deadline = $3
	`
	res, err := r.DB.ExecContext(ctx, query, sentAt, id, responseDeadline)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *activityRepository) Finalize(ctx context.Context, id string, upd domain.ActivityUpdate, guestInvitationIDs []string) (*domain.Activity, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	guestQuery := `
		UPDATE invitations
		SET in_guest_list = (id::text = ANY($2))
		WHERE activity_id = $1
	`
	if _, err := tx.ExecContext(ctx, guestQuery, id, pq.Array(guestInvitationIDs)); err != nil {
		return nil, fmt.Errorf("set guest list: %w", err)
	}

	query := updateActivity + ` AND status = 'collecting' RETURNING ` + activityColumns
	a, err := scanActivity(tx.QueryRowContext(ctx, query,
		string(upd.Status), upd.ActivityDate, upd.ResponseDeadline, upd.ReminderSentAt, upd.Venue, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrActivityClosed
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}
