// Package job provides the Job aggregate for managing audio split jobs.
// It includes the Job entity with its state machine, as well as repository
// interfaces for persistence.
package job

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/maauso/audiosplit-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being split.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// SegmentRecord describes one published output segment.
type SegmentRecord struct {
	// Index is the ordinal used in the segment filename.
	Index int
	// StartSample and EndSample delimit the segment in frames.
	StartSample int
	EndSample   int
	// StartTime and EndTime are HH:MM:SS.001 timestamps.
	StartTime string
	EndTime   string
	// Location is the published file path or URL.
	Location string
}

// Job represents an audio split job aggregate.
// It contains all state related to splitting one recording.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// InputName is the original file name of the recording.
	InputName string
	// WindowDuration is the energy window length in seconds.
	WindowDuration float64
	// SilenceThreshold is the normalized energy threshold.
	SilenceThreshold float64
	// SampleRate of the decoded input.
	SampleRate int
	// Duration of the input, formatted as H:M:S.
	Duration string
	// Segments contains the published segments, ordered by index.
	Segments []SegmentRecord
	// TimeRanges maps segment ordinals to [start, end] timestamps.
	TimeRanges map[string][2]string
	// ManifestLocation is where the time-range manifest was published.
	ManifestLocation string
	// Warnings lists segments that were skipped or clamped.
	Warnings []string
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:         jobID,
		Status:     StatusInQueue,
		Segments:   make([]SegmentRecord, 0),
		TimeRanges: make(map[string][2]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInput records the decoded input properties.
func (j *Job) SetInput(sampleRate int, duration string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.SampleRate = sampleRate
	j.Duration = duration
	j.UpdatedAt = time.Now()
}

// SetSegments replaces the published segments and their time ranges.
func (j *Job) SetSegments(segments []SegmentRecord, ranges map[string][2]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Segments = segments
	j.TimeRanges = ranges
	j.UpdatedAt = time.Now()
}

// SetManifest sets where the time-range manifest was published.
func (j *Job) SetManifest(location string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ManifestLocation = location
	j.UpdatedAt = time.Now()
}

// AddWarning records a recovered per-segment problem.
func (j *Job) AddWarning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Warnings = append(j.Warnings, msg)
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// AdvanceProgress raises the progress percentage to progress, clamped to
// 100. Lower values are ignored so concurrent writers never move it back.
func (j *Job) AdvanceProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress = min(progress, 100)
	if progress <= j.Progress {
		return
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	segments := make([]SegmentRecord, len(j.Segments))
	copy(segments, j.Segments)

	var warnings []string
	if j.Warnings != nil {
		warnings = make([]string, len(j.Warnings))
		copy(warnings, j.Warnings)
	}

	return &Job{
		ID:               j.ID,
		Status:           j.Status,
		InputName:        j.InputName,
		WindowDuration:   j.WindowDuration,
		SilenceThreshold: j.SilenceThreshold,
		SampleRate:       j.SampleRate,
		Duration:         j.Duration,
		Segments:         segments,
		TimeRanges:       maps.Clone(j.TimeRanges),
		ManifestLocation: j.ManifestLocation,
		Warnings:         warnings,
		Progress:         j.Progress,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
