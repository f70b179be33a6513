package syncer

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	norm, err := NewNormalizer("Asia/Singapore", 14, testLogger())
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	return norm
}

func TestNormalizeUTC(t *testing.T) {
	norm := newTestNormalizer(t)

	got := norm.Normalize("2024-09-01T12:00:00Z")
	want := "2024-09-01T20:00:00+08:00"
	if got != want {
		t.Errorf("Normalize: got %q, want %q", got, want)
	}
}

func TestNormalizeUTCOffsetSuffix(t *testing.T) {
	norm := newTestNormalizer(t)

	got := norm.Normalize("2024-01-01T00:00:00+00:00")
	want := "2024-01-01T08:00:00+08:00"
	if got != want {
		t.Errorf("Normalize: got %q, want %q", got, want)
	}
}

func TestNormalizeNaive(t *testing.T) {
	norm := newTestNormalizer(t)

	// Zone-less timestamps are wall-clock time in the target zone; the
	// instant must not shift.
	got := norm.Normalize("2024-09-01T23:30:00")
	want := "2024-09-01T23:30:00+08:00"
	if got != want {
		t.Errorf("Normalize: got %q, want %q", got, want)
	}
}

func TestNormalizeAbsent(t *testing.T) {
	norm := newTestNormalizer(t)

	if got := norm.Normalize(""); got != "" {
		t.Errorf("empty input: got %q", got)
	}
	if got := norm.Normalize("null"); got != "" {
		t.Errorf("null literal: got %q", got)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	norm := newTestNormalizer(t)

	if got := norm.Normalize("next tuesday"); got != "" {
		t.Errorf("malformed input: got %q, want empty", got)
	}
	if got := norm.Normalize("2024-13-45T99:00:00Z"); got != "" {
		t.Errorf("invalid date: got %q, want empty", got)
	}
}

func TestWait(t *testing.T) {
	norm := newTestNormalizer(t)

	wait, ok := norm.Wait("2024-10-20T10:00:00Z")
	if !ok {
		t.Fatal("expected wait for UTC due")
	}
	want := time.Date(2024, 10, 6, 10, 0, 0, 0, time.UTC)
	if !wait.Equal(want) {
		t.Errorf("wait: got %v, want %v", wait, want)
	}
}

func TestWaitNotSetForNaiveDue(t *testing.T) {
	norm := newTestNormalizer(t)

	if _, ok := norm.Wait("2024-10-20T10:00:00"); ok {
		t.Error("expected no wait for naive due")
	}
	if _, ok := norm.Wait(""); ok {
		t.Error("expected no wait for absent due")
	}
	if _, ok := norm.Wait("garbage-Z"); ok {
		t.Error("expected no wait for malformed due")
	}
}

func TestWaitCustomOffset(t *testing.T) {
	norm, err := NewNormalizer("Asia/Singapore", 7, testLogger())
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	wait, ok := norm.Wait("2024-10-20T10:00:00Z")
	if !ok {
		t.Fatal("expected wait")
	}
	want := time.Date(2024, 10, 13, 10, 0, 0, 0, time.UTC)
	if !wait.Equal(want) {
		t.Errorf("wait: got %v, want %v", wait, want)
	}
}

func TestNewNormalizerBadZone(t *testing.T) {
	if _, err := NewNormalizer("Mars/Olympus_Mons", 14, testLogger()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestDatesEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"", "", true},
		{"", "2024-01-01T00:00:00+08:00", false},
		{"2024-01-01T00:00:00+08:00", "", false},
		{"2024-01-01T00:00:00+08:00", "2024-01-01T00:00:00+08:00", true},
		// Same instant, different offset spelling: unequal on purpose.
		{"2024-01-01T00:00:00+08:00", "2023-12-31T16:00:00Z", false},
	}
	for _, tc := range cases {
		if got := DatesEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("DatesEqual(%q, %q): got %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
