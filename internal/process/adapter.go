// Package process tracks the outcome of every file a mirror run visits.
package process

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a per-file job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusRunning     JobStatus = "running"
	JobStatusSucceeded   JobStatus = "succeeded"
	JobStatusSkipped     JobStatus = "skipped"
	JobStatusUnsupported JobStatus = "unsupported"
	JobStatusFailed      JobStatus = "failed"
)

// Job captures what happened to one source file.
type Job struct {
	ID     string
	Kind   string
	Source string
	Target string
	Status JobStatus
	Error  string
}

func NewJob(kind, source, target string) *Job {
	return &Job{
		ID:     uuid.NewString(),
		Kind:   kind,
		Source: source,
		Target: target,
		Status: JobStatusPending,
	}
}

func MarkRunning(j *Job)     { j.Status = JobStatusRunning }
func MarkSucceeded(j *Job)   { j.Status = JobStatusSucceeded }
func MarkSkipped(j *Job)     { j.Status = JobStatusSkipped }
func MarkUnsupported(j *Job) { j.Status = JobStatusUnsupported }
func MarkFailed(j *Job, err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.Error = err.Error()
	}
}

// Summary aggregates finished jobs. It is safe for concurrent use.
type Summary struct {
	mu          sync.Mutex
	dirs        int
	traversal   int
	counts      map[JobStatus]int
	byKind      map[string]map[JobStatus]int
	failedPaths []string
}

func NewSummary() *Summary {
	return &Summary{
		counts: make(map[JobStatus]int),
		byKind: make(map[string]map[JobStatus]int),
	}
}

// Record adds a finished job.
func (s *Summary) Record(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[j.Status]++
	kind := s.byKind[j.Kind]
	if kind == nil {
		kind = make(map[JobStatus]int)
		s.byKind[j.Kind] = kind
	}
	kind[j.Status]++
	if j.Status == JobStatusFailed {
		s.failedPaths = append(s.failedPaths, j.Source)
	}
}

// AddDir counts a directory visited in the destination tree.
func (s *Summary) AddDir() {
	s.mu.Lock()
	s.dirs++
	s.mu.Unlock()
}

// AddTraversalError counts a subtree that could not be read.
func (s *Summary) AddTraversalError() {
	s.mu.Lock()
	s.traversal++
	s.mu.Unlock()
}

func (s *Summary) Count(status JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[status]
}

func (s *Summary) KindCount(kind string, status JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKind[kind][status]
}

func (s *Summary) Dirs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs
}

func (s *Summary) TraversalErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traversal
}

// Total is the number of recorded jobs.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// FailedPaths returns the sorted source paths of failed jobs.
func (s *Summary) FailedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.failedPaths...)
	sort.Strings(out)
	return out
}
