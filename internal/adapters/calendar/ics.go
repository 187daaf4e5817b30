// Package calendar exports activities as iCalendar documents.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"sunnyside/internal/domain"
)

// DefaultDuration is the event length used since activities only carry a start time.
const DefaultDuration = 2 * time.Hour

const productID = "-//Sunnyside//Activities//EN"

var errNoDate = errors.New("activity has no date")

type icsExporter struct {
	domain string
	now    func() time.Time
}

// NewICSExporter returns a CalendarExporter. uidDomain is appended to activity IDs to form UIDs.
func NewICSExporter(uidDomain string) domain.CalendarExporter {
	return &icsExporter{domain: uidDomain, now: time.Now}
}

func (e *icsExporter) Export(activity *domain.Activity, organizer *domain.User, guests []*domain.Invitation) ([]byte, error) {
	if activity.ActivityDate == nil {
		return nil, fmt.Errorf("export %s: %w", activity.ID, errNoDate)
	}
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	ev := cal.AddEvent(activity.ID + "@" + e.domain)
	ev.SetDtStampTime(e.now().UTC())
	ev.SetCreatedTime(activity.CreatedAt.UTC())
	ev.SetModifiedAt(activity.UpdatedAt.UTC())
	start := activity.ActivityDate.UTC()
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(DefaultDuration))
	ev.SetSummary(activity.Title)
	ev.SetDescription(activity.RawInput)
	if loc := location(activity); loc != "" {
		ev.SetLocation(loc)
	}
	if activity.Status == domain.ActivityStatusCancelled {
		ev.SetStatus(ical.ObjectStatusCancelled)
	} else if activity.Status == domain.ActivityStatusFinalized {
		ev.SetStatus(ical.ObjectStatusConfirmed)
	} else {
		ev.SetStatus(ical.ObjectStatusTentative)
	}
	if organizer != nil {
		ev.SetOrganizer("mailto:"+organizer.Email, ical.WithCN(organizer.Name))
	}
	for _, g := range guests {
		ev.AddAttendee(g.Email)
	}
	return []byte(cal.Serialize()), nil
}

func location(a *domain.Activity) string {
	if a.Venue != nil && strings.TrimSpace(*a.Venue) != "" {
		return *a.Venue
	}
	return a.Location
}
