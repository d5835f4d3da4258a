package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session JTI.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// UserActiveAttemptKey returns the cache key for a user's active attempt id.
func (r *CacheKeyStruct) UserActiveAttemptKey(userID int) string {
	return fmt.Sprintf("user:%d:active_attempt", userID)
}

// ExamTimerChannel returns the Redis PubSub channel for an exam's timer
// broadcasts. Every server instance relays messages from this channel to
// its local websocket room for the exam.
func (r *CacheKeyStruct) ExamTimerChannel(examID string) string {
	return fmt.Sprintf("exam:%s:timer", examID)
}

// ExamDurationKey returns the cache key for an exam's duration in seconds.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

var CacheKey = NewCacheKeyStruct()
