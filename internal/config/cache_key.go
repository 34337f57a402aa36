package config

import (
	"fmt"
)

type CacheKeyStruct struct {
	prefix string
}

func NewCacheKeyStruct(prefix string) *CacheKeyStruct {
	return &CacheKeyStruct{prefix: prefix}
}

// EventsChannel returns the Redis PubSub channel carrying every booking event
func (r *CacheKeyStruct) EventsChannel() string {
	return fmt.Sprintf("%s:events", r.prefix)
}

// SubjectEventsChannel returns the Redis PubSub channel for a single subject's events
func (r *CacheKeyStruct) SubjectEventsChannel(subject string) string {
	return fmt.Sprintf("%s:subject:%s:events", r.prefix, subject)
}

var CacheKey = NewCacheKeyStruct("taskbook")
