package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

// TasksFileName is the task store file inside the base directory.
const TasksFileName = "tasks.yaml"

// TaskEntry is a task as stored in tasks.yaml, plus the time it was last
// placed by a scheduling pass.
type TaskEntry struct {
	models.Task `yaml:",inline"`
	ScheduledAt string `yaml:"scheduled_at,omitempty"`
}

// TaskFilter specifies criteria for filtering task entries.
// All specified fields use AND logic.
type TaskFilter struct {
	ZoneType    models.ZoneType
	ProjectID   string
	Unscheduled bool
}

// TasksFile represents the top-level structure of tasks.yaml. Tasks keep
// their file order, which is the input order a pass breaks ties with.
type TasksFile struct {
	Version string      `yaml:"version"`
	Tasks   []TaskEntry `yaml:"tasks"`
}

// TaskStore manages the task list kept in tasks.yaml.
type TaskStore interface {
	AddTask(task models.Task) error
	UpdateTask(taskID string, task models.Task) error
	RemoveTask(taskID string) error
	GetTask(taskID string) (*TaskEntry, error)
	GetAllTasks() ([]TaskEntry, error)
	FilterTasks(filter TaskFilter) ([]TaskEntry, error)
	MarkScheduled(taskID string, at time.Time) error
	FilePath() string
	Load() error
	Save() error
}

type fileTaskStore struct {
	basePath string
	data     TasksFile
}

// NewTaskStore creates a new TaskStore backed by a tasks.yaml file in the
// given base directory.
func NewTaskStore(basePath string) TaskStore {
	return &fileTaskStore{
		basePath: basePath,
		data:     TasksFile{Version: "1.0"},
	}
}

func (s *fileTaskStore) FilePath() string {
	return filepath.Join(s.basePath, TasksFileName)
}

func (s *fileTaskStore) indexOf(taskID string) int {
	for i, e := range s.data.Tasks {
		if e.ID == taskID {
			return i
		}
	}
	return -1
}

func (s *fileTaskStore) AddTask(task models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("adding task: ID must not be empty")
	}
	if s.indexOf(task.ID) >= 0 {
		return fmt.Errorf("adding task: task %s already exists", task.ID)
	}
	s.data.Tasks = append(s.data.Tasks, TaskEntry{Task: task})
	return nil
}

// UpdateTask replaces the stored task and clears its scheduled time, since
// the old placement no longer reflects it.
func (s *fileTaskStore) UpdateTask(taskID string, task models.Task) error {
	i := s.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("updating task: task %s not found", taskID)
	}
	task.ID = taskID
	s.data.Tasks[i] = TaskEntry{Task: task}
	return nil
}

func (s *fileTaskStore) RemoveTask(taskID string) error {
	i := s.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("removing task: task %s not found", taskID)
	}
	s.data.Tasks = append(s.data.Tasks[:i], s.data.Tasks[i+1:]...)
	return nil
}

func (s *fileTaskStore) GetTask(taskID string) (*TaskEntry, error) {
	i := s.indexOf(taskID)
	if i < 0 {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	entry := s.data.Tasks[i]
	return &entry, nil
}

func (s *fileTaskStore) GetAllTasks() ([]TaskEntry, error) {
	entries := make([]TaskEntry, len(s.data.Tasks))
	copy(entries, s.data.Tasks)
	return entries, nil
}

func (s *fileTaskStore) FilterTasks(filter TaskFilter) ([]TaskEntry, error) {
	var result []TaskEntry
	for _, e := range s.data.Tasks {
		if filter.ZoneType != "" && e.Constraints.ZoneType != filter.ZoneType {
			continue
		}
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Unscheduled && e.ScheduledAt != "" {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *fileTaskStore) MarkScheduled(taskID string, at time.Time) error {
	i := s.indexOf(taskID)
	if i < 0 {
		return fmt.Errorf("marking task scheduled: task %s not found", taskID)
	}
	s.data.Tasks[i].ScheduledAt = at.UTC().Format(time.RFC3339)
	return nil
}

func (s *fileTaskStore) Load() error {
	data, err := os.ReadFile(s.FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = TasksFile{Version: "1.0"}
			return nil
		}
		return fmt.Errorf("loading tasks: %w", err)
	}

	var tf TasksFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("loading tasks: parsing YAML: %w", err)
	}
	seen := make(map[string]bool, len(tf.Tasks))
	for _, e := range tf.Tasks {
		if e.ID == "" {
			return fmt.Errorf("loading tasks: task %q has no id", e.Title)
		}
		if seen[e.ID] {
			return fmt.Errorf("loading tasks: duplicate task id %s", e.ID)
		}
		seen[e.ID] = true
	}
	if tf.Version == "" {
		tf.Version = "1.0"
	}
	s.data = tf
	return nil
}

func (s *fileTaskStore) Save() error {
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("saving tasks: marshaling YAML: %w", err)
	}
	if err := writeLocked(s.basePath, s.FilePath(), data); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	return nil
}
