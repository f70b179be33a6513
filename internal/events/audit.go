package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxLogSize is the rotation threshold (20MB).
	DefaultMaxLogSize = 20 * 1024 * 1024
	logFileExtension  = ".jsonl"
	archiveDirName    = "archive"
)

// AuditEntry is one line of the sync audit log.
type AuditEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id,omitempty"`
	EventType    string    `json:"event_type"`
	CourseID     int64     `json:"course_id,omitempty"`
	Project      string    `json:"project,omitempty"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	TaskUUID     string    `json:"task_uuid,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// AuditLogger appends JSONL entries to a log file, rotating into an archive
// directory when the file exceeds maxSize.
type AuditLogger struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
}

// NewAuditLogger opens (or creates) the audit log at logPath.
func NewAuditLogger(logPath string, maxSize int64) (*AuditLogger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &AuditLogger{logPath: logPath, maxSize: maxSize}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// WriteEntry appends one entry to the log, rotating first if needed.
func (l *AuditLogger) WriteEntry(entry *AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

// Subscriber returns a bus subscriber that records events for the given run.
func (l *AuditLogger) Subscriber(runID string) Subscriber {
	return func(event Event) {
		entry := AuditEntry{
			Timestamp: event.Timestamp,
			RunID:     runID,
			EventType: string(event.Type),
		}
		if v, ok := event.Data["course_id"].(int64); ok {
			entry.CourseID = v
		}
		if v, ok := event.Data["project"].(string); ok {
			entry.Project = v
		}
		if v, ok := event.Data["assignment_id"].(string); ok {
			entry.AssignmentID = v
		}
		if v, ok := event.Data["task_uuid"].(string); ok {
			entry.TaskUUID = v
		}
		if v, ok := event.Data["detail"].(string); ok {
			entry.Detail = v
		}
		_ = l.WriteEntry(&entry)
	}
}

func (l *AuditLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.logPath), archiveDirName)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	base := filepath.Base(l.logPath)
	stem := base[:len(base)-len(logFileExtension)]
	archiveName := fmt.Sprintf("%s.%s%s", stem, time.Now().Format("20060102_150405"), logFileExtension)
	if err := os.Rename(l.logPath, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}

	return l.openLogFile()
}

// Close flushes and closes the underlying file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}
