package config

import (
	"os"
	"strings"
)

func BoolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ExclusiveMatchRuns serializes executions of the same demand version with a
// redis lock. A second request gets 409 while a run is in flight.
//
// Set via env:
// - MATCH_EXCLUSIVE_RUNS=true
func ExclusiveMatchRuns() bool {
	return BoolFromEnv("MATCH_EXCLUSIVE_RUNS", false)
}

// RegionalBonusEnabled adds the same-city and nearby bonuses to the ranking.
// On unless MATCH_REGIONAL_BONUS=false.
func RegionalBonusEnabled() bool {
	return BoolFromEnv("MATCH_REGIONAL_BONUS", true)
}

// MatchEventsEnabled starts the outbox dispatcher that publishes execution
// events to Pub/Sub (MATCH_EVENTS_TOPIC).
func MatchEventsEnabled() bool {
	return BoolFromEnv("MATCH_EVENTS_ENABLED", false)
}

func RateLimitEnabled() bool {
	return BoolFromEnv("RATE_LIMIT_ENABLED", false)
}

func SkipMigrations() bool {
	return BoolFromEnv("SKIP_MIGRATIONS", false)
}
