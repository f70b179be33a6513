// Package syncer implements the reconciliation engine that keeps local tasks
// consistent with remote course assignments.
package syncer

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// localLayout is the ISO-8601 representation written to task due fields,
// always carrying a zone offset.
const localLayout = "2006-01-02T15:04:05-07:00"

// naiveLayout matches zone-less wall-clock timestamps from the API.
const naiveLayout = "2006-01-02T15:04:05"

// Normalizer converts raw API due timestamps into target-zone instants and
// derives wait instants a fixed number of days earlier.
type Normalizer struct {
	loc        *time.Location
	waitOffset time.Duration
	logger     *logrus.Logger
}

// NewNormalizer creates a Normalizer for the named IANA timezone.
func NewNormalizer(timezone string, waitOffsetDays int, logger *logrus.Logger) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		loc:        loc,
		waitOffset: time.Duration(waitOffsetDays) * 24 * time.Hour,
		logger:     logger,
	}, nil
}

// isUTC reports whether raw carries an explicit UTC marker.
func isUTC(raw string) bool {
	return strings.HasSuffix(raw, "Z") || strings.HasSuffix(raw, "+00:00")
}

// Normalize converts a raw due timestamp to the target zone and returns its
// ISO-8601 representation with offset. Absent or malformed input yields "";
// a malformed value is logged and treated as no due date.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" || raw == "null" {
		return ""
	}
	if isUTC(raw) {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			n.warnMalformed(raw, err)
			return ""
		}
		return t.In(n.loc).Format(localLayout)
	}
	// No zone marker: treat the value as wall-clock time already in the
	// target zone, without shifting the instant.
	t, err := time.ParseInLocation(naiveLayout, raw, n.loc)
	if err != nil {
		n.warnMalformed(raw, err)
		return ""
	}
	return t.Format(localLayout)
}

// Wait returns the wait instant for a raw due timestamp: the due instant
// minus the configured offset, computed in absolute time from the raw value.
// Only UTC-marked timestamps produce a wait.
func (n *Normalizer) Wait(raw string) (time.Time, bool) {
	if raw == "" || raw == "null" || !isUTC(raw) {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.Add(-n.waitOffset), true
}

func (n *Normalizer) warnMalformed(raw string, err error) {
	if n.logger != nil {
		n.logger.WithFields(logrus.Fields{
			"due_at": raw,
			"error":  err.Error(),
		}).Warn("unparseable due date, treating as absent")
	}
}

// DatesEqual compares two normalized due strings. Both absent is equal,
// exactly one absent is not, otherwise the ISO strings must match exactly.
// Differing offset spellings of the same instant compare unequal on purpose:
// when in doubt the task is re-saved.
func DatesEqual(a, b string) bool {
	if a == "" && b == "" {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return a == b
}
