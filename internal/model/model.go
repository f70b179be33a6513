// Package model defines the data structures for coursetask's remote course
// view, local task records, and configuration.
package model

import (
	"fmt"
	"strconv"
)

// Course is a remote course as reported by the dashboard. Name doubles as the
// task store project key.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AssignmentGroup is one grading group within a course.
type AssignmentGroup struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Assignments []Assignment `json:"assignments"`
}

// Assignment is a remote gradable item. DueAt is the raw API timestamp;
// empty string means no due date.
type Assignment struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	DueAt string `json:"due_at"`
}

// IDString returns the assignment id in the form used by description markers
// and the source_assignment_id field.
func (a Assignment) IDString() string {
	return strconv.FormatInt(a.ID, 10)
}

// Priority is the task priority level.
type Priority string

const (
	PriorityHigh   Priority = "H"
	PriorityMedium Priority = "M"
	PriorityLow    Priority = "L"
)

// Valid reports whether p is a known priority level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task is one local task record. SourceAssignmentID is the authoritative link
// back to the assignment; the trailing "#<id>" marker in Description is kept
// for human readability and for records created by older tooling.
type Task struct {
	UUID               string   `yaml:"uuid"`
	Description        string   `yaml:"description"`
	Project            string   `yaml:"project"`
	SourceAssignmentID string   `yaml:"source_assignment_id,omitempty"`
	Due                string   `yaml:"due,omitempty"`
	Wait               string   `yaml:"wait,omitempty"`
	Tags               []string `yaml:"tags,omitempty"`
	Priority           Priority `yaml:"priority,omitempty"`
	Entry              string   `yaml:"entry,omitempty"`
	Modified           string   `yaml:"modified,omitempty"`
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// TaskFile is the on-disk shape of one project's task file.
type TaskFile struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
	Project       string `yaml:"project"`
	Tasks         []Task `yaml:"tasks"`
}

const (
	TaskFileSchemaVersion = 1
	TaskFileType          = "project_tasks"
)

// Validate checks structural invariants of a loaded task file.
func (f *TaskFile) Validate() error {
	if f.SchemaVersion != TaskFileSchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", f.SchemaVersion)
	}
	if f.FileType != TaskFileType {
		return fmt.Errorf("unexpected file_type %q", f.FileType)
	}
	for i := range f.Tasks {
		if f.Tasks[i].UUID == "" {
			return fmt.Errorf("task %d missing uuid", i)
		}
	}
	return nil
}
