package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hsakai/coursetask/internal/events"
	"github.com/hsakai/coursetask/internal/model"
)

// CourseSource supplies the remote course and assignment view.
type CourseSource interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListAssignmentGroups(ctx context.Context, courseID int64) ([]model.AssignmentGroup, error)
}

// CourseFailure records one course whose reconciliation failed.
type CourseFailure struct {
	CourseID int64  `json:"course_id"`
	Project  string `json:"project"`
	Message  string `json:"message"`
}

// Summary is the result of one sync run.
type Summary struct {
	RunID     string          `json:"run_id"`
	Courses   int             `json:"courses"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Failures  []CourseFailure `json:"failures,omitempty"`
}

// Orchestrator fans the reconciler out across all courses with a bounded
// worker pool. Courses fail independently; only the initial course-list
// fetch aborts a run.
type Orchestrator struct {
	source    CourseSource
	rec       *Reconciler
	poolWidth int
	logger    *logrus.Logger
	eventBus  *events.Bus
	runID     string
}

// NewOrchestrator creates an Orchestrator running at most poolWidth course
// reconciliations concurrently.
func NewOrchestrator(source CourseSource, rec *Reconciler, poolWidth int, logger *logrus.Logger) *Orchestrator {
	if poolWidth < 1 {
		poolWidth = 1
	}
	return &Orchestrator{
		source:    source,
		rec:       rec,
		poolWidth: poolWidth,
		logger:    logger,
	}
}

// SetEventBus sets the bus for publishing run-level events.
func (o *Orchestrator) SetEventBus(bus *events.Bus) {
	o.eventBus = bus
	o.rec.SetEventBus(bus)
}

// SetRunID fixes the run id for the next Run, so callers can correlate the
// summary with audit log entries. An unset id is generated per run.
func (o *Orchestrator) SetRunID(id string) {
	o.runID = id
}

// Run reconciles every course once and returns the run summary. The error is
// non-nil only when the course list itself cannot be fetched.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	courses, err := o.source.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	runID := o.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := &Summary{RunID: runID, Courses: len(courses)}
	o.logger.WithFields(logrus.Fields{
		"run_id":  summary.RunID,
		"courses": len(courses),
		"pool":    o.poolWidth,
	}).Info("sync run started")

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.poolWidth)

	for _, course := range courses {
		course := course
		g.Go(func() error {
			actions, err := o.processCourse(ctx, course)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, CourseFailure{
					CourseID: course.ID,
					Project:  course.Name,
					Message:  err.Error(),
				})
				return nil
			}
			for _, action := range actions {
				switch action.Type {
				case ActionCreated:
					summary.Created++
				case ActionUpdated:
					summary.Updated++
				case ActionUnchanged:
					summary.Unchanged++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"created":   summary.Created,
		"updated":   summary.Updated,
		"unchanged": summary.Unchanged,
		"failed":    len(summary.Failures),
	}).Info("sync run finished")
	if o.eventBus != nil {
		o.eventBus.Publish(events.EventSyncCompleted, map[string]interface{}{
			"detail": fmt.Sprintf("created=%d updated=%d unchanged=%d failed=%d",
				summary.Created, summary.Updated, summary.Unchanged, len(summary.Failures)),
		})
	}
	return summary, nil
}

// processCourse runs one course end to end, converting panics into ordinary
// failures so a bad course cannot take down its siblings.
func (o *Orchestrator) processCourse(ctx context.Context, course model.Course) (actions []Action, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			o.logger.WithFields(logrus.Fields{
				"course_id": course.ID,
				"project":   course.Name,
				"error":     err.Error(),
			}).Error("course reconciliation failed")
			if o.eventBus != nil {
				o.eventBus.Publish(events.EventCourseFailed, map[string]interface{}{
					"course_id": course.ID,
					"project":   course.Name,
					"detail":    err.Error(),
				})
			}
		}
	}()

	groups, err := o.source.ListAssignmentGroups(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignment groups: %w", err)
	}
	return o.rec.ReconcileCourse(course, groups)
}
