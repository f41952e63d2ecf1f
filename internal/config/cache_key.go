package config

import (
	"fmt"
	"time"
)

// PublishedScheduleTTL bounds staleness of the cached published schedule.
// The refresh worker rebuilds it on demand well before expiry.
const PublishedScheduleTTL = 5 * time.Minute

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session (JTI).
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// StudentActiveExamKey returns the cache key guarding a student's currently
// open exam session. Its presence blocks starting a second exam.
func (r *CacheKeyStruct) StudentActiveExamKey(studentID int) string {
	return fmt.Sprintf("student:%d:active_exam", studentID)
}

// StudentRefreshMarkerKey returns the cache key for the "submitted due to an
// accidental page refresh" marker. Cleared at the start of every session start.
func (r *CacheKeyStruct) StudentRefreshMarkerKey(studentID int) string {
	return fmt.Sprintf("student:%d:refresh_submit", studentID)
}

// PublishedScheduleKey returns the cache key holding the published exam
// schedule served to student lobbies.
func (r *CacheKeyStruct) PublishedScheduleKey() string {
	return "schedule:published"
}

var CacheKey = NewCacheKeyStruct()
