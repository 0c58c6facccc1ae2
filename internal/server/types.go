// Package server provides the HTTP server for the audio split API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// Filename is the original file name; its extension selects the decoder.
	Filename string `json:"filename" validate:"required,max=255"`
	// AudioBase64 is the base64-encoded recording.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// WindowDuration is the energy window length in seconds.
	// Zero selects the server default.
	WindowDuration float64 `json:"window_duration" validate:"omitempty,gt=0,lte=10"`
	// SilenceThreshold is the normalized energy below which a window is silent.
	// Omitted selects the server default.
	SilenceThreshold *float64 `json:"silence_threshold" validate:"omitempty,gte=0,lt=1"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// SegmentResponse describes one published segment.
type SegmentResponse struct {
	Index       int    `json:"index"`
	StartSample int    `json:"start_sample"`
	EndSample   int    `json:"end_sample"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Input is the uploaded file name.
	Input string `json:"input"`
	// WindowDuration and SilenceThreshold are the effective parameters.
	WindowDuration   float64 `json:"window_duration"`
	SilenceThreshold float64 `json:"silence_threshold"`
	// SampleRate of the decoded input, once known.
	SampleRate int `json:"sample_rate,omitempty"`
	// Duration of the input as H:M:S, once known.
	Duration string `json:"duration,omitempty"`
	// Segments lists the published segments of a completed job.
	Segments []SegmentResponse `json:"segments,omitempty"`
	// TimeRanges maps segment ordinals to [start, end] timestamps.
	TimeRanges map[string][2]string `json:"time_ranges,omitempty"`
	// ManifestLocation is where the time-range manifest was published.
	ManifestLocation string `json:"manifest_location,omitempty"`
	// Warnings lists segments that were skipped or clamped.
	Warnings []string `json:"warnings,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
