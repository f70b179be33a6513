package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAuditWriteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(path, 0)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer logger.Close()

	entry := &AuditEntry{
		RunID:        "run-1",
		EventType:    string(EventTaskCreated),
		CourseID:     42,
		Project:      "CS101",
		AssignmentID: "7",
		TaskUUID:     "uuid-1",
		Detail:       "Lab 1 #7",
	}
	if err := logger.WriteEntry(entry); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var got AuditEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if got.RunID != "run-1" || got.Project != "CS101" || got.AssignmentID != "7" {
		t.Errorf("entry round trip: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestAuditAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(path, 0)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 3; i++ {
		if err := logger.WriteEntry(&AuditEntry{EventType: "task_created"}); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Errorf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("lines: got %d, want 3", lines)
	}
}

func TestAuditRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	// Tiny threshold so the second entry forces rotation.
	logger, err := NewAuditLogger(path, 100)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 3; i++ {
		if err := logger.WriteEntry(&AuditEntry{
			EventType: "task_created",
			Detail:    "a reasonably long detail string to exceed the threshold",
		}); err != nil {
			t.Fatalf("WriteEntry %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected at least one archived log file")
	}
}

func TestAuditSubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(path, 0)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer logger.Close()

	sub := logger.Subscriber("run-9")
	sub(Event{
		Type:      EventTaskUpdated,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"course_id":     int64(42),
			"project":       "CS101",
			"assignment_id": "7",
			"task_uuid":     "uuid-1",
			"detail":        "Lab 1 #7",
		},
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var got AuditEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RunID != "run-9" {
		t.Errorf("run_id: got %q", got.RunID)
	}
	if got.EventType != string(EventTaskUpdated) {
		t.Errorf("event_type: got %q", got.EventType)
	}
	if got.CourseID != 42 || got.Project != "CS101" || got.TaskUUID != "uuid-1" {
		t.Errorf("fields: %+v", got)
	}
}
