package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/keycal/keycal/internal/domain"
)

const timeLayout = "Mon 02 Jan 15:04"

// DayColor picks the color for an event at t by wall clock date: past days
// are red, today is green, tomorrow is yellow and anything later is gray.
func DayColor(t, now time.Time) string {
	switch days := calendarDay(t).Sub(calendarDay(now)) / (24 * time.Hour); {
	case days < 0:
		return "red"
	case days == 0:
		return "green"
	case days == 1:
		return "yellow"
	default:
		return "gray"
	}
}

// calendarDay is midnight of t's wall clock date, zone dropped.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RenderEvents writes events as aligned columns: id, time and title.
func RenderEvents(w io.Writer, events []domain.Event, now time.Time, c *Colorizer) error {
	idWidth := 2
	for _, e := range events {
		idWidth = max(idWidth, len(strconv.FormatInt(e.ID, 10)))
	}

	header := padToWidth("#", idWidth) + "  " + padToWidth("WHEN", len(timeLayout)) + "  TITLE"
	if _, err := fmt.Fprintln(w, c.Bold(header)); err != nil {
		return err
	}

	for _, e := range events {
		id := padToWidth(strconv.FormatInt(e.ID, 10), idWidth)
		when := c.Color(e.Time.Format(timeLayout), DayColor(e.Time.Time, now))
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", c.Dim(id), when, e.Title); err != nil {
			return err
		}
	}
	return nil
}

func padToWidth(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
