package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layouts for the calendar strings carried by exam descriptors.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ErrMalformedSchedule is returned when a descriptor's date/time strings do
// not parse or its duration is not positive. Malformed descriptors are
// rejected here, at the ingestion boundary, instead of propagating invalid
// timestamps into categorization.
var ErrMalformedSchedule = errors.New("malformed exam schedule")

// ExamWindow is the closed interval [Start, End] during which an exam is
// enterable. It is constructed once per descriptor via NewExamWindow.
type ExamWindow struct {
	Start time.Time `json:"starts_at"`
	End   time.Time `json:"ends_at"`
}

// NewExamWindow combines a descriptor's start date, start time and duration
// into a validated window. The time strings are interpreted in the server's
// local zone, matching how the scheduling office records them.
func NewExamWindow(startDate, startTime string, totalMinutes int) (ExamWindow, error) {
	if totalMinutes <= 0 {
		return ExamWindow{}, fmt.Errorf("%w: duration %d minutes", ErrMalformedSchedule, totalMinutes)
	}

	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, startDate+" "+startTime, time.Local)
	if err != nil {
		return ExamWindow{}, fmt.Errorf("%w: %q %q", ErrMalformedSchedule, startDate, startTime)
	}

	return ExamWindow{
		Start: start,
		End:   start.Add(time.Duration(totalMinutes) * time.Minute),
	}, nil
}

// Contains reports whether now falls inside the window. Both boundaries are
// inclusive: an exam is enterable at the exact start and exact end instants.
func (w ExamWindow) Contains(now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}

// FormatStart renders the window's opening instant for user-facing messages.
func (w ExamWindow) FormatStart() string {
	return w.Start.Format("02 Jan 2006 15:04")
}

// FormatEnd renders the window's closing instant for user-facing messages.
func (w ExamWindow) FormatEnd() string {
	return w.End.Format("02 Jan 2006 15:04")
}

// CollectionName derives the answer-collection name from an exam name by
// stripping the trailing "-"-delimited batch segment. Names without a
// separator are returned unchanged.
func CollectionName(examName string) string {
	idx := strings.LastIndex(examName, "-")
	if idx <= 0 {
		return examName
	}
	return examName[:idx]
}
