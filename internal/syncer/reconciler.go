package syncer

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hsakai/coursetask/internal/events"
	"github.com/hsakai/coursetask/internal/model"
	"github.com/hsakai/coursetask/internal/store"
)

// ActionType classifies the outcome of reconciling one assignment.
type ActionType string

const (
	ActionCreated   ActionType = "created"
	ActionUpdated   ActionType = "updated"
	ActionUnchanged ActionType = "unchanged"
)

// Action describes a single reconciliation outcome.
type Action struct {
	Type         ActionType
	AssignmentID string
	TaskUUID     string
	Description  string
}

// Reconciler makes one course's local tasks consistent with its remote
// assignments. Remote state is never mutated and local tasks are never
// deleted.
type Reconciler struct {
	store    store.TaskStore
	norm     *Normalizer
	priority model.Priority
	logger   *logrus.Logger
	eventBus *events.Bus
}

// NewReconciler creates a Reconciler writing through the given store.
func NewReconciler(st store.TaskStore, norm *Normalizer, priority model.Priority, logger *logrus.Logger) *Reconciler {
	if !priority.Valid() {
		priority = model.PriorityMedium
	}
	return &Reconciler{
		store:    st,
		norm:     norm,
		priority: priority,
		logger:   logger,
	}
}

// SetEventBus sets the bus for publishing per-action events.
func (r *Reconciler) SetEventBus(bus *events.Bus) {
	r.eventBus = bus
}

// ReconcileCourse processes every assignment of one course in source order.
// Each create or update is persisted immediately; an error aborts the course
// but leaves earlier writes intact.
func (r *Reconciler) ReconcileCourse(course model.Course, groups []model.AssignmentGroup) ([]Action, error) {
	if !anyAssignments(groups) {
		r.logger.WithField("project", course.Name).Debug("no assignments, skipping course")
		return nil, nil
	}

	tasks, err := r.store.FilterTasks(course.Name)
	if err != nil {
		return nil, fmt.Errorf("filter tasks for %q: %w", course.Name, err)
	}

	var actions []Action
	for _, group := range groups {
		for _, assignment := range group.Assignments {
			action, err := r.reconcileAssignment(course, assignment, &tasks)
			if err != nil {
				return actions, err
			}
			actions = append(actions, action)
		}
	}
	return actions, nil
}

// reconcileAssignment applies the create/update/no-op decision for one
// assignment. tasks is the course's in-memory task list; created tasks are
// appended so a repeated assignment id later in the feed matches them.
func (r *Reconciler) reconcileAssignment(course model.Course, assignment model.Assignment, tasks *[]model.Task) (Action, error) {
	idStr := assignment.IDString()
	due := r.norm.Normalize(assignment.DueAt)
	tags := Classify(assignment.Name)
	desc := fmt.Sprintf("%s #%s", assignment.Name, idStr)

	matchIdx := -1
	extra := 0
	for i := range *tasks {
		if taskAssignmentID(&(*tasks)[i]) != idStr {
			continue
		}
		if matchIdx == -1 {
			matchIdx = i
		} else {
			extra++
		}
	}
	if extra > 0 {
		// Duplicate markers are a local data-integrity problem; the first
		// match stays authoritative.
		r.logger.WithFields(logrus.Fields{
			"project":       course.Name,
			"assignment_id": idStr,
			"extra_tasks":   extra,
		}).Warn("multiple tasks reference the same assignment")
	}

	if matchIdx == -1 {
		return r.createTask(course, assignment, desc, due, tags, tasks)
	}
	return r.updateTask(course, assignment, desc, due, tags, &(*tasks)[matchIdx])
}

func (r *Reconciler) createTask(course model.Course, assignment model.Assignment, desc, due string, tags []string, tasks *[]model.Task) (Action, error) {
	task := model.Task{
		Description:        desc,
		Project:            course.Name,
		SourceAssignmentID: assignment.IDString(),
		Priority:           r.priority,
		Tags:               tags,
	}
	if due != "" {
		task.Due = due
		if wait, ok := r.norm.Wait(assignment.DueAt); ok {
			task.Wait = wait.UTC().Format(time.RFC3339)
		}
	}

	if err := r.store.SaveTask(&task); err != nil {
		return Action{}, fmt.Errorf("create task for assignment %s: %w", assignment.IDString(), err)
	}
	*tasks = append(*tasks, task)

	r.logger.WithFields(logrus.Fields{
		"project":       course.Name,
		"assignment_id": task.SourceAssignmentID,
		"task_uuid":     task.UUID,
		"due":           task.Due,
	}).Info("task created")
	r.publish(events.EventTaskCreated, course, &task)

	return Action{Type: ActionCreated, AssignmentID: task.SourceAssignmentID, TaskUUID: task.UUID, Description: desc}, nil
}

func (r *Reconciler) updateTask(course model.Course, assignment model.Assignment, desc, due string, tags []string, task *model.Task) (Action, error) {
	idStr := assignment.IDString()
	action := Action{AssignmentID: idStr, TaskUUID: task.UUID, Description: desc}

	dirty := task.Description != desc ||
		!DatesEqual(task.Due, due) ||
		!tagsSubset(tags, task.Tags) ||
		task.SourceAssignmentID != idStr
	if !dirty {
		r.logger.WithFields(logrus.Fields{
			"project":       course.Name,
			"assignment_id": idStr,
			"task_uuid":     task.UUID,
		}).Debug("task up to date")
		action.Type = ActionUnchanged
		return action, nil
	}

	task.Description = desc
	task.SourceAssignmentID = idStr
	task.Due = due
	// Manually added tags are preserved; the classifier only adds.
	task.Tags = tagsUnion(task.Tags, tags)
	if due != "" {
		if wait, ok := r.norm.Wait(assignment.DueAt); ok {
			task.Wait = wait.UTC().Format(time.RFC3339)
		}
	}

	if err := r.store.SaveTask(task); err != nil {
		return Action{}, fmt.Errorf("update task %s: %w", task.UUID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"project":       course.Name,
		"assignment_id": idStr,
		"task_uuid":     task.UUID,
		"due":           task.Due,
	}).Info("task updated")
	r.publish(events.EventTaskUpdated, course, task)

	action.Type = ActionUpdated
	return action, nil
}

func (r *Reconciler) publish(eventType events.EventType, course model.Course, task *model.Task) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(eventType, map[string]interface{}{
		"course_id":     course.ID,
		"project":       course.Name,
		"assignment_id": task.SourceAssignmentID,
		"task_uuid":     task.UUID,
		"detail":        task.Description,
	})
}

// taskAssignmentID resolves a task's assignment link: the explicit field when
// present, otherwise the trailing description marker.
func taskAssignmentID(task *model.Task) string {
	if task.SourceAssignmentID != "" {
		return task.SourceAssignmentID
	}
	return ExtractAssignmentID(task.Description)
}

func anyAssignments(groups []model.AssignmentGroup) bool {
	for _, g := range groups {
		if len(g.Assignments) > 0 {
			return true
		}
	}
	return false
}

func tagsSubset(want, have []string) bool {
	set := make(map[string]bool, len(have))
	for _, tag := range have {
		set[tag] = true
	}
	for _, tag := range want {
		if !set[tag] {
			return false
		}
	}
	return true
}

func tagsUnion(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, tag := range a {
		set[tag] = true
	}
	for _, tag := range b {
		set[tag] = true
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
