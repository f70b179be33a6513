// Package store persists tasks as one YAML file per project.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/hsakai/coursetask/internal/model"
)

// TaskStore is the capability the reconciliation engine depends on.
type TaskStore interface {
	// FilterTasks returns the current tasks for one project, in file order.
	FilterTasks(project string) ([]model.Task, error)
	// SaveTask inserts the task when its UUID is unknown and replaces the
	// stored record otherwise. New tasks get a UUID and entry timestamp.
	SaveTask(task *model.Task) error
}

// YAMLStore stores each project's tasks in <dir>/projects/<slug>.yaml.
// Writers for the same project are serialized through a per-project mutex;
// writes to different projects are independent.
type YAMLStore struct {
	dir string

	mu      sync.Mutex
	byProj  map[string]*sync.Mutex
	nowFunc func() time.Time
}

// NewYAMLStore creates the store rooted at dir, creating the projects
// directory if needed.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "projects"), 0755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	return &YAMLStore{
		dir:     dir,
		byProj:  make(map[string]*sync.Mutex),
		nowFunc: time.Now,
	}, nil
}

func (s *YAMLStore) projectMutex(project string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mu, ok := s.byProj[project]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.byProj[project] = mu
	return mu
}

// projectSlug maps a project name to a safe file name.
func projectSlug(project string) string {
	slug := strings.ToLower(project)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, slug)
	return strings.Trim(slug, "-")
}

func (s *YAMLStore) projectPath(project string) string {
	return filepath.Join(s.dir, "projects", projectSlug(project)+".yaml")
}

// FilterTasks returns the tasks for one project. A missing file means an
// empty project. A corrupt file is retried from its .bak before failing.
func (s *YAMLStore) FilterTasks(project string) ([]model.Task, error) {
	mu := s.projectMutex(project)
	mu.Lock()
	defer mu.Unlock()

	file, err := s.loadLocked(project)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, len(file.Tasks))
	copy(tasks, file.Tasks)
	return tasks, nil
}

// SaveTask persists one task. Tasks without a UUID are treated as new.
func (s *YAMLStore) SaveTask(task *model.Task) error {
	if task.Project == "" {
		return fmt.Errorf("task has no project")
	}

	mu := s.projectMutex(task.Project)
	mu.Lock()
	defer mu.Unlock()

	file, err := s.loadLocked(task.Project)
	if err != nil {
		return err
	}

	now := s.nowFunc().UTC().Format(time.RFC3339)
	if task.UUID == "" {
		task.UUID = uuid.NewString()
		task.Entry = now
	}
	task.Modified = now

	replaced := false
	for i := range file.Tasks {
		if file.Tasks[i].UUID == task.UUID {
			file.Tasks[i] = *task
			replaced = true
			break
		}
	}
	if !replaced {
		file.Tasks = append(file.Tasks, *task)
	}

	if err := atomicWrite(s.projectPath(task.Project), file); err != nil {
		return fmt.Errorf("persist project %q: %w", task.Project, err)
	}
	return nil
}

// loadLocked reads the project file; the caller holds the project mutex.
func (s *YAMLStore) loadLocked(project string) (*model.TaskFile, error) {
	path := s.projectPath(project)
	file, err := readTaskFile(path)
	if err == nil {
		return file, nil
	}
	if os.IsNotExist(err) {
		return &model.TaskFile{
			SchemaVersion: model.TaskFileSchemaVersion,
			FileType:      model.TaskFileType,
			Project:       project,
		}, nil
	}

	// Corrupt or invalid file: fall back to the backup when it parses.
	if bak, bakErr := readTaskFile(path + ".bak"); bakErr == nil {
		return bak, nil
	}
	return nil, fmt.Errorf("load project %q: %w", project, err)
}

func readTaskFile(path string) (*model.TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file model.TaskFile
	if err := yamlv3.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}
