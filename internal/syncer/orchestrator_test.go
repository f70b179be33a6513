package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hsakai/coursetask/internal/model"
)

// fakeSource is an in-memory CourseSource.
type fakeSource struct {
	courses     []model.Course
	groups      map[int64][]model.AssignmentGroup
	listErr     error
	failCourses map[int64]error

	mu         sync.Mutex
	active     int32
	maxActive  int32
	groupCalls int
}

func (f *fakeSource) ListCourses(ctx context.Context) ([]model.Course, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.courses, nil
}

func (f *fakeSource) ListAssignmentGroups(ctx context.Context, courseID int64) ([]model.AssignmentGroup, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		max := atomic.LoadInt32(&f.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxActive, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.groupCalls++
	f.mu.Unlock()

	if err, ok := f.failCourses[courseID]; ok {
		return nil, err
	}
	return f.groups[courseID], nil
}

func newTestOrchestrator(t *testing.T, source CourseSource, st *fakeStore, width int) *Orchestrator {
	t.Helper()
	rec := newTestReconciler(t, st)
	return NewOrchestrator(source, rec, width, testLogger())
}

func TestOrchestratorRunAllCourses(t *testing.T) {
	source := &fakeSource{
		courses: []model.Course{
			{ID: 1, Name: "CS101"},
			{ID: 2, Name: "MA201"},
			{ID: 3, Name: "PH301"},
		},
		groups: map[int64][]model.AssignmentGroup{
			1: groupsWith(model.Assignment{ID: 10, Name: "Lab 1"}),
			2: groupsWith(model.Assignment{ID: 20, Name: "Homework 1"}),
			3: nil, // no assignments at all
		},
	}
	st := newFakeStore()
	orc := newTestOrchestrator(t, source, st, 2)

	summary, err := orc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Courses != 3 {
		t.Errorf("courses: got %d", summary.Courses)
	}
	if summary.Created != 2 {
		t.Errorf("created: got %d, want 2", summary.Created)
	}
	if len(summary.Failures) != 0 {
		t.Errorf("failures: %+v", summary.Failures)
	}
	if summary.RunID == "" {
		t.Error("run id missing")
	}
	if source.groupCalls != 3 {
		t.Errorf("group calls: got %d", source.groupCalls)
	}
}

func TestOrchestratorIsolatesCourseFailure(t *testing.T) {
	source := &fakeSource{
		courses: []model.Course{
			{ID: 1, Name: "CS101"},
			{ID: 2, Name: "MA201"},
			{ID: 3, Name: "PH301"},
		},
		groups: map[int64][]model.AssignmentGroup{
			1: groupsWith(model.Assignment{ID: 10, Name: "Lab 1"}),
			3: groupsWith(model.Assignment{ID: 30, Name: "Quiz 1"}),
		},
		failCourses: map[int64]error{2: fmt.Errorf("503 service unavailable")},
	}
	st := newFakeStore()
	orc := newTestOrchestrator(t, source, st, 5)

	summary, err := orc.Run(context.Background())
	if err != nil {
		t.Fatalf("one course failing must not fail the run: %v", err)
	}
	if summary.Created != 2 {
		t.Errorf("created: got %d, want 2 (healthy courses processed)", summary.Created)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("failures: got %d, want 1", len(summary.Failures))
	}
	if summary.Failures[0].Project != "MA201" {
		t.Errorf("failed project: got %q", summary.Failures[0].Project)
	}
}

func TestOrchestratorCourseListFailureIsFatal(t *testing.T) {
	source := &fakeSource{listErr: fmt.Errorf("401 unauthorized")}
	orc := newTestOrchestrator(t, source, newFakeStore(), 5)

	if _, err := orc.Run(context.Background()); err == nil {
		t.Fatal("expected error when the course list cannot be fetched")
	}
}

func TestOrchestratorBoundedPool(t *testing.T) {
	var courses []model.Course
	groups := make(map[int64][]model.AssignmentGroup)
	for i := int64(1); i <= 20; i++ {
		courses = append(courses, model.Course{ID: i, Name: fmt.Sprintf("C%02d", i)})
		groups[i] = groupsWith(model.Assignment{ID: 100 + i, Name: "Homework"})
	}
	source := &fakeSource{courses: courses, groups: groups}
	st := newFakeStore()
	orc := newTestOrchestrator(t, source, st, 3)

	summary, err := orc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Created != 20 {
		t.Errorf("created: got %d", summary.Created)
	}
	if got := atomic.LoadInt32(&source.maxActive); got > 3 {
		t.Errorf("pool width exceeded: %d concurrent fetches", got)
	}
}

func TestOrchestratorRecoversPanic(t *testing.T) {
	source := &fakeSource{
		courses: []model.Course{{ID: 1, Name: "CS101"}, {ID: 2, Name: "MA201"}},
		groups: map[int64][]model.AssignmentGroup{
			1: {{ID: 1, Assignments: nil}},
			2: groupsWith(model.Assignment{ID: 20, Name: "Homework 1"}),
		},
	}
	panicSource := &panicOnCourse{fakeSource: source, panicID: 1}

	st := newFakeStore()
	orc := newTestOrchestrator(t, panicSource, st, 2)

	summary, err := orc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("failures: got %d, want 1", len(summary.Failures))
	}
	if summary.Created != 1 {
		t.Errorf("created: got %d, want 1", summary.Created)
	}
}

type panicOnCourse struct {
	*fakeSource
	panicID int64
}

func (p *panicOnCourse) ListAssignmentGroups(ctx context.Context, courseID int64) ([]model.AssignmentGroup, error) {
	if courseID == p.panicID {
		panic("unexpected payload shape")
	}
	return p.fakeSource.ListAssignmentGroups(ctx, courseID)
}
