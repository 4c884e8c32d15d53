// Package ics renders event batches as iCalendar documents.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/keycal/keycal/internal/domain"
)

const (
	ContentType = "text/calendar; charset=utf-8"
	productID   = "keycal"
	calName     = "keycal events"

	// floatingLayout is an iCalendar local time with no zone reference.
	floatingLayout = "20060102T150405"
)

// uidSpace namespaces event UIDs so a batch re-exported with the same stamp
// yields stable identifiers.
var uidSpace = uuid.MustParse("6f1c3f5e-2a51-4c1f-9a0e-4d7b52f0c8a1")

// Export writes events as a PUBLISH calendar. stamp is used for DTSTAMP.
func Export(w io.Writer, events []domain.Event, stamp time.Time) error {
	cal := ical.NewCalendarFor(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(calName)

	for _, ev := range events {
		uid := uuid.NewSHA1(uidSpace, fmt.Appendf(nil, "%d/%s/%d", ev.ID, ev.Time.String(), stamp.UnixNano()))
		vevent := cal.AddEvent(uid.String())
		vevent.SetDtStampTime(stamp)
		vevent.SetProperty(ical.ComponentPropertyDtStart, ev.Time.Format(floatingLayout))
		vevent.SetSummary(ev.Title)
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("serialize calendar: %w", err)
	}
	return nil
}
