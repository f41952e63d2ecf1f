package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewExamWindow(t *testing.T) {
	tests := []struct {
		name      string
		startDate string
		startTime string
		minutes   int
		wantErr   bool
	}{
		{name: "well formed", startDate: "2026-05-04", startTime: "10:00", minutes: 60},
		{name: "midnight start", startDate: "2026-05-04", startTime: "00:00", minutes: 30},
		{name: "bad date", startDate: "04/05/2026", startTime: "10:00", minutes: 60, wantErr: true},
		{name: "bad time", startDate: "2026-05-04", startTime: "10am", minutes: 60, wantErr: true},
		{name: "empty date", startDate: "", startTime: "10:00", minutes: 60, wantErr: true},
		{name: "zero duration", startDate: "2026-05-04", startTime: "10:00", minutes: 0, wantErr: true},
		{name: "negative duration", startDate: "2026-05-04", startTime: "10:00", minutes: -5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewExamWindow(tt.startDate, tt.startTime, tt.minutes)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedSchedule) {
					t.Fatalf("error = %v, want ErrMalformedSchedule", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !w.End.After(w.Start) {
				t.Fatalf("window end %v not after start %v", w.End, w.Start)
			}
			if got := w.End.Sub(w.Start); got != time.Duration(tt.minutes)*time.Minute {
				t.Fatalf("duration = %v, want %d minutes", got, tt.minutes)
			}
		})
	}
}

func TestExamWindowContains(t *testing.T) {
	w, err := NewExamWindow("2026-05-04", "10:00", 60)
	if err != nil {
		t.Fatalf("NewExamWindow: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "exact start", now: w.Start, want: true},
		{name: "exact end", now: w.End, want: true},
		{name: "inside", now: w.Start.Add(time.Minute), want: true},
		{name: "before", now: w.Start.Add(-time.Millisecond), want: false},
		{name: "after", now: w.End.Add(time.Millisecond), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.now); got != tt.want {
				t.Fatalf("Contains(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		examName string
		want     string
	}{
		{examName: "algebra-midterm-b1", want: "algebra-midterm"},
		{examName: "physics-final", want: "physics"},
		{examName: "standalone", want: "standalone"},
		{examName: "-leading", want: "-leading"},
		{examName: "", want: ""},
	}

	for _, tt := range tests {
		if got := CollectionName(tt.examName); got != tt.want {
			t.Errorf("CollectionName(%q) = %q, want %q", tt.examName, got, tt.want)
		}
	}
}
