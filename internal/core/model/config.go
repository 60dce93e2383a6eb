package model

import "time"

// TimerRecord is the single persisted commitment shared by every page.
// The zero value means no commitment exists.
type TimerRecord struct {
	EndTime    time.Time
	Commitment string
}

// Empty reports whether the record holds no commitment.
func (record TimerRecord) Empty() bool {
	return record.EndTime.IsZero()
}

// Active reports whether the commitment is still running at now.
func (record TimerRecord) Active(now time.Time) bool {
	return !record.Empty() && now.Before(record.EndTime)
}

// Expired reports whether a commitment exists and its end time has passed.
func (record TimerRecord) Expired(now time.Time) bool {
	return !record.Empty() && !now.Before(record.EndTime)
}

// Equal compares two records at millisecond precision, which is what the store keeps.
func (record TimerRecord) Equal(other TimerRecord) bool {
	return record.EndTime.UnixMilli() == other.EndTime.UnixMilli() &&
		record.Empty() == other.Empty() &&
		record.Commitment == other.Commitment
}

// RecordChange describes a mutation of the TimerRecord observed by a subscriber.
type RecordChange struct {
	Old TimerRecord
	New TimerRecord
}

// Cleared reports whether the change removed an existing record.
func (change RecordChange) Cleared() bool {
	return !change.Old.Empty() && change.New.Empty()
}

// GateConfig contains the commitment rules applied by every page.
type GateConfig struct {
	AllowedMinutes []int
	DefaultMinutes int
	TickInterval   time.Duration
}

// DefaultAllowedMinutes is the fixed set of durations a user may commit to.
var DefaultAllowedMinutes = []int{1, 5, 10, 15, 30, 45, 60}

// Allows reports whether minutes is one of the allowed durations.
func (config GateConfig) Allows(minutes int) bool {
	for _, allowed := range config.AllowedMinutes {
		if allowed == minutes {
			return true
		}
	}
	return false
}
