package schedule

import (
	"testing"
	"time"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/google/uuid"
)

func scheduledExam(t *testing.T, name string, start time.Time, minutes int) ScheduledExam {
	t.Helper()
	e := model.Exam{
		ExamID:        uuid.New(),
		ExamName:      name,
		StartDate:     start.Format(model.DateLayout),
		StartTime:     start.Format(model.TimeLayout),
		TotalExamTime: minutes,
		Status:        model.ExamStatusPublished,
	}
	w, err := model.NewExamWindow(e.StartDate, e.StartTime, e.TotalExamTime)
	if err != nil {
		t.Fatalf("NewExamWindow: %v", err)
	}
	return ScheduledExam{Exam: e, Window: w}
}

func TestCategorizeBoundaries(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	exam := scheduledExam(t, "algebra-midterm-b1", start, 60)
	end := start.Add(60 * time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{name: "exact start is active", now: start, want: "active"},
		{name: "exact end is active", now: end, want: "active"},
		{name: "inside window is active", now: start.Add(30 * time.Minute), want: "active"},
		{name: "just before start is upcoming", now: start.Add(-time.Millisecond), want: "upcoming"},
		{name: "just after end is finished", now: end.Add(time.Millisecond), want: "finished"},
		{name: "long before start is upcoming", now: start.Add(-48 * time.Hour), want: "upcoming"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Categorize([]ScheduledExam{exam}, tt.now)
			got := map[string]int{
				"active":   len(b.Active),
				"upcoming": len(b.Upcoming),
				"finished": len(b.Finished),
			}
			total := got["active"] + got["upcoming"] + got["finished"]
			if total != 1 {
				t.Fatalf("exam appears in %d buckets, want exactly 1", total)
			}
			if got[tt.want] != 1 {
				t.Fatalf("exam categorized as %+v, want %s", got, tt.want)
			}
		})
	}
}

func TestCategorizeTotality(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.Local)
	exams := []ScheduledExam{
		scheduledExam(t, "phy-unit-a", now.Add(-3*time.Hour), 60),
		scheduledExam(t, "chem-unit-a", now.Add(-30*time.Minute), 90),
		scheduledExam(t, "math-unit-a", now.Add(2*time.Hour), 60),
		scheduledExam(t, "bio-unit-a", now.Add(-26*time.Hour), 45),
		scheduledExam(t, "eng-unit-a", now.Add(30*time.Hour), 120),
	}

	b := Categorize(exams, now)
	total := len(b.Active) + len(b.Upcoming) + len(b.Finished)
	if total != len(exams) {
		t.Fatalf("buckets hold %d exams, want %d", total, len(exams))
	}

	seen := make(map[string]bool)
	for _, list := range [][]ScheduledExam{b.Active, b.Upcoming, b.Finished} {
		for _, e := range list {
			if seen[e.ExamName] {
				t.Fatalf("exam %s appears in more than one bucket", e.ExamName)
			}
			seen[e.ExamName] = true
		}
	}
}

func TestCategorizeZeroNow(t *testing.T) {
	exam := scheduledExam(t, "algebra-midterm-b1", time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local), 60)

	b := Categorize([]ScheduledExam{exam}, time.Time{})
	if len(b.Active)+len(b.Upcoming)+len(b.Finished) != 0 {
		t.Fatalf("unresolved clock must yield empty buckets, got %+v", b)
	}
}

func TestCategorizeFinishedSortedDescending(t *testing.T) {
	now := time.Date(2026, 5, 4, 20, 0, 0, 0, time.Local)
	oldest := scheduledExam(t, "term1-exam", now.Add(-10*time.Hour), 60)
	middle := scheduledExam(t, "term2-exam", now.Add(-6*time.Hour), 60)
	newest := scheduledExam(t, "term3-exam", now.Add(-3*time.Hour), 60)

	b := Categorize([]ScheduledExam{oldest, newest, middle}, now)
	if len(b.Finished) != 3 {
		t.Fatalf("finished bucket has %d exams, want 3", len(b.Finished))
	}

	wantOrder := []string{"term3-exam", "term2-exam", "term1-exam"}
	for i, want := range wantOrder {
		if b.Finished[i].ExamName != want {
			t.Fatalf("finished[%d] = %s, want %s", i, b.Finished[i].ExamName, want)
		}
	}
}

func TestCategorizePreservesSourceOrder(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.Local)
	first := scheduledExam(t, "slot-b-exam", now.Add(4*time.Hour), 60)
	second := scheduledExam(t, "slot-a-exam", now.Add(2*time.Hour), 60)

	b := Categorize([]ScheduledExam{first, second}, now)
	if len(b.Upcoming) != 2 {
		t.Fatalf("upcoming bucket has %d exams, want 2", len(b.Upcoming))
	}
	if b.Upcoming[0].ExamName != "slot-b-exam" || b.Upcoming[1].ExamName != "slot-a-exam" {
		t.Fatalf("upcoming bucket reordered: %s, %s", b.Upcoming[0].ExamName, b.Upcoming[1].ExamName)
	}
}

func TestBuildQuarantinesMalformed(t *testing.T) {
	good := model.Exam{
		ExamID:        uuid.New(),
		ExamName:      "algebra-midterm-b1",
		StartDate:     "2026-05-04",
		StartTime:     "10:00",
		TotalExamTime: 60,
	}
	badDate := good
	badDate.ExamName = "bad-date-exam"
	badDate.StartDate = "04/05/2026"

	badDuration := good
	badDuration.ExamName = "bad-duration-exam"
	badDuration.TotalExamTime = 0

	valid, invalid := Build([]model.Exam{good, badDate, badDuration})
	if len(valid) != 1 || valid[0].ExamName != "algebra-midterm-b1" {
		t.Fatalf("valid = %+v, want only the well-formed exam", valid)
	}
	if len(invalid) != 2 {
		t.Fatalf("invalid has %d entries, want 2", len(invalid))
	}
	for _, inv := range invalid {
		if inv.Reason == "" {
			t.Fatalf("invalid exam %s has empty reason", inv.ExamName)
		}
	}
}
