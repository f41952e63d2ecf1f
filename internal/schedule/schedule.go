// Package schedule partitions exam descriptors into active, upcoming and
// finished buckets relative to a trusted "now". Categorization is a pure
// function recomputed on every read; bucket membership is never stored.
package schedule

import (
	"sort"
	"time"

	"github.com/edupulse/portal-backend/internal/model"
)

// ScheduledExam is an exam descriptor paired with its validated window.
type ScheduledExam struct {
	model.Exam
	Window model.ExamWindow `json:"window"`
}

// InvalidExam is a descriptor whose window failed validation at ingestion.
// Quarantined and surfaced separately instead of being silently mis-bucketed.
type InvalidExam struct {
	model.Exam
	Reason string `json:"reason"`
}

// Buckets holds the three mutually exclusive, collectively exhaustive
// categorization buckets.
type Buckets struct {
	Active   []ScheduledExam `json:"active"`
	Upcoming []ScheduledExam `json:"upcoming"`
	Finished []ScheduledExam `json:"finished"`
}

// Build validates raw descriptors into scheduled exams. Malformed schedules
// are collected into the invalid list, never passed downstream.
func Build(exams []model.Exam) ([]ScheduledExam, []InvalidExam) {
	valid := make([]ScheduledExam, 0, len(exams))
	var invalid []InvalidExam

	for _, e := range exams {
		w, err := model.NewExamWindow(e.StartDate, e.StartTime, e.TotalExamTime)
		if err != nil {
			invalid = append(invalid, InvalidExam{Exam: e, Reason: err.Error()})
			continue
		}
		valid = append(valid, ScheduledExam{Exam: e, Window: w})
	}
	return valid, invalid
}

// Categorize partitions exams relative to now.
//
// Boundaries are inclusive: now == Start and now == End both count as active.
// A zero now means the clock has not resolved yet; all buckets come back
// empty so callers never show stale categorization. The finished bucket is
// sorted most-recently-started first; active and upcoming preserve source
// order.
func Categorize(exams []ScheduledExam, now time.Time) Buckets {
	b := Buckets{
		Active:   []ScheduledExam{},
		Upcoming: []ScheduledExam{},
		Finished: []ScheduledExam{},
	}
	if now.IsZero() {
		return b
	}

	for _, e := range exams {
		switch {
		case e.Window.Contains(now):
			b.Active = append(b.Active, e)
		case now.Before(e.Window.Start):
			b.Upcoming = append(b.Upcoming, e)
		default:
			b.Finished = append(b.Finished, e)
		}
	}

	sort.SliceStable(b.Finished, func(i, j int) bool {
		return b.Finished[i].Window.Start.After(b.Finished[j].Window.Start)
	})

	return b
}
