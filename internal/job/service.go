// Package job provides the SplitService use case for orchestrating the
// silence-based splitting of uploaded recordings.
package job

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/segment"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// Static errors for split input validation.
var (
	// ErrMissingFilename is returned when the upload has no file name.
	ErrMissingFilename = errors.New("filename is required")
	// ErrEmptyAudio is returned when the upload has no content.
	ErrEmptyAudio = errors.New("audio content is empty")
	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job is still active")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
	// ErrJobCancelled is the cause attached to the context of a running job
	// when it is cancelled.
	ErrJobCancelled = errors.New("job cancelled")
)

// Progress checkpoints reported while a job runs.
const (
	progressDecoded  = 10
	progressSplit    = 20
	progressWritten  = 95
	progressFinished = 100
)

// defaultMaxConcurrentWrites bounds parallel segment encoding and publishing.
const defaultMaxConcurrentWrites = 4

// SplitInput contains the input parameters for splitting a recording.
type SplitInput struct {
	// Filename is the original name of the recording; its base name
	// becomes the prefix of every output file.
	Filename string
	// Audio is the raw file content in any format ffmpeg understands.
	Audio []byte
	// WindowDuration overrides the service default when non-zero.
	WindowDuration float64
	// SilenceThreshold overrides the service default when set.
	SilenceThreshold *float64
}

// SplitOutput contains the result of a split.
type SplitOutput struct {
	// JobID is the unique identifier of the job.
	JobID string
	// Status is the final job status.
	Status Status
	// Segments are the published segments.
	Segments []SegmentRecord
	// ManifestLocation is where the time-range manifest was published.
	ManifestLocation string
	// Warnings lists recovered per-segment problems.
	Warnings []string
	// Error contains any error message if processing failed.
	Error string
}

// SplitService orchestrates the split workflow.
// It coordinates format conversion, WAV decoding, segmentation and storage.
type SplitService struct {
	repo      Repository
	converter audio.Converter
	store     storage.Storage
	logger    *slog.Logger

	defaults            segment.WindowConfig
	maxConcurrentWrites int
	flatOutput          bool

	// mu guards active and orders job starts against cancellation.
	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
}

// ServiceOption configures a SplitService.
type ServiceOption func(*SplitService)

// WithMaxConcurrentWrites sets how many segments are written in parallel.
// Values below one are ignored.
func WithMaxConcurrentWrites(n int) ServiceOption {
	return func(s *SplitService) {
		if n > 0 {
			s.maxConcurrentWrites = n
		}
	}
}

// WithDefaultWindow sets the window config used when a request omits it.
func WithDefaultWindow(cfg segment.WindowConfig) ServiceOption {
	return func(s *SplitService) {
		s.defaults = cfg
	}
}

// WithFlatOutput publishes files directly under the output root instead of
// one directory per job.
func WithFlatOutput() ServiceOption {
	return func(s *SplitService) {
		s.flatOutput = true
	}
}

// NewSplitService creates a new SplitService.
func NewSplitService(repo Repository, converter audio.Converter, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *SplitService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SplitService{
		repo:                repo,
		converter:           converter,
		store:               store,
		logger:              logger,
		defaults:            segment.DefaultWindowConfig(),
		maxConcurrentWrites: defaultMaxConcurrentWrites,
		active:              make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// windowConfig merges request overrides with the service defaults.
func (s *SplitService) windowConfig(input SplitInput) segment.WindowConfig {
	window := s.defaults.WindowDuration
	if input.WindowDuration != 0 {
		window = input.WindowDuration
	}
	threshold := s.defaults.SilenceThreshold
	if input.SilenceThreshold != nil {
		threshold = *input.SilenceThreshold
	}
	return segment.NewWindowConfig(window, threshold)
}

// validateInput rejects inputs that cannot be processed at all, so that
// configuration errors surface before a job is queued.
func (s *SplitService) validateInput(input SplitInput) error {
	if input.Filename == "" {
		return ErrMissingFilename
	}
	if len(input.Audio) == 0 {
		return ErrEmptyAudio
	}
	return s.windowConfig(input).Validate()
}

// CreateJob validates the input, creates a new job and persists it.
// The job is created in IN_QUEUE status, ready for processing.
func (s *SplitService) CreateJob(ctx context.Context, input SplitInput) (*Job, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	cfg := s.windowConfig(input)
	job := New()
	job.InputName = filepath.Base(input.Filename)
	job.WindowDuration = cfg.WindowDuration
	job.SilenceThreshold = cfg.SilenceThreshold

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("input", job.InputName),
		slog.Float64("window_duration", cfg.WindowDuration),
		slog.Float64("silence_threshold", cfg.SilenceThreshold),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *SplitService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *SplitService) ListJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return jobs, nil
}

// DeleteJob removes the record of a finished job.
// Published segments and manifests are left in place.
func (s *SplitService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", slog.String("job_id", id))
	return nil
}

// CancelJob stops a job. A queued job is marked CANCELLED immediately; a
// running job has its context cancelled and is marked CANCELLED by the
// worker once processing unwinds. Finished jobs return ErrJobFinished.
func (s *SplitService) CancelJob(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, ErrJobFinished
	}

	if cancel, ok := s.active[id]; ok {
		cancel(ErrJobCancelled)
		s.logger.Info("job cancellation requested", slog.String("job_id", id))
		return job, nil
	}

	if err := job.Cancel(); err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", id, err)
	}
	s.save(ctx, job)
	s.logger.Info("job cancelled", slog.String("job_id", id))
	return job, nil
}

// Process creates a job and splits the recording synchronously.
func (s *SplitService) Process(ctx context.Context, input SplitInput) (*SplitOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob runs the split workflow for a job created by CreateJob.
//
// The workflow:
//  1. Save the upload to temporary storage
//  2. Convert it to WAV when needed
//  3. Decode PCM samples
//  4. Split at silence boundaries
//  5. Encode and publish each segment in parallel
//  6. Publish the time-range manifest
//  7. Update the job to COMPLETED, FAILED or CANCELLED
func (s *SplitService) ProcessExistingJob(ctx context.Context, jobID string, input SplitInput) (*SplitOutput, error) {
	job, runCtx, err := s.start(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer s.finish(jobID)

	if err := s.run(runCtx, job, input); err != nil {
		if errors.Is(context.Cause(runCtx), ErrJobCancelled) {
			s.logger.Info("job cancelled while running",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			_ = job.Cancel()
			s.save(ctx, job)
			return s.output(job), ErrJobCancelled
		}
		s.logger.Error("job failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = job.Fail(err.Error())
		s.save(ctx, job)
		return s.output(job), err
	}

	job.UpdateProgress(progressFinished)
	if err := job.Complete(); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Int("segments", len(job.Segments)),
		slog.String("manifest", job.ManifestLocation),
	)

	return s.output(job), nil
}

// start moves a queued job to RUNNING and registers its cancel function.
func (s *SplitService) start(ctx context.Context, jobID string) (*Job, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if err := job.Start(); err != nil {
		return nil, nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	runCtx, cancel := context.WithCancelCause(ctx)
	s.active[jobID] = cancel
	return job, runCtx, nil
}

// finish releases the cancel function registered by start.
func (s *SplitService) finish(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.active[jobID]; ok {
		cancel(nil)
		delete(s.active, jobID)
	}
}

func (s *SplitService) run(ctx context.Context, job *Job, input SplitInput) error {
	var tempPaths []string
	defer func() {
		if err := s.store.CleanupTemp(context.WithoutCancel(ctx), tempPaths); err != nil {
			s.logger.Warn("failed to clean up temp files",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	inputPath, err := s.store.SaveTemp(ctx, job.InputName, bytes.NewReader(input.Audio))
	if err != nil {
		return fmt.Errorf("save input: %w", err)
	}
	tempPaths = append(tempPaths, inputPath)
	workDir := filepath.Dir(inputPath)

	wavPath, err := s.converter.ToWAV(ctx, inputPath, workDir)
	if err != nil {
		return fmt.Errorf("convert input: %w", err)
	}
	if wavPath != inputPath {
		tempPaths = append(tempPaths, wavPath)
	}

	buf, format, err := s.decode(ctx, wavPath)
	if err != nil {
		return err
	}
	job.SetInput(buf.SampleRate, segment.FormatClock(buf.Seconds(buf.Frames())))
	job.UpdateProgress(progressDecoded)
	s.save(ctx, job)

	cfg := segment.NewWindowConfig(job.WindowDuration, job.SilenceThreshold)
	res, err := segment.Split(buf, cfg)
	if err != nil {
		return fmt.Errorf("split audio: %w", err)
	}
	for _, w := range res.Warnings {
		s.logger.Warn("segment anomaly",
			slog.String("job_id", job.ID),
			slog.String("warning", w.Error()),
		)
		job.AddWarning(w.Error())
	}
	job.UpdateProgress(progressSplit)
	s.save(ctx, job)

	s.logger.Info("audio split",
		slog.String("job_id", job.ID),
		slog.Int("segments", len(res.Segments)),
		slog.Int("window_size", res.WindowSize),
		slog.Int("step_size", res.StepSize),
		slog.String("duration", job.Duration),
	)

	prefix := audio.Prefix(job.InputName)
	records, err := s.publishSegments(ctx, job, workDir, prefix, res.Segments, format)
	if err != nil {
		if len(records) > 0 {
			job.SetSegments(records, recordRanges(records))
		}
		return err
	}
	job.SetSegments(records, res.TimeRanges())

	manifest, err := json.Marshal(res.TimeRanges())
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	location, err := s.store.Publish(ctx, s.key(job, audio.ManifestFilename(prefix)), bytes.NewReader(manifest))
	if err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	job.SetManifest(location)

	return nil
}

// decode loads a WAV file from temporary storage into a sample buffer.
func (s *SplitService) decode(ctx context.Context, wavPath string) (*segment.SampleBuffer, audio.Format, error) {
	rc, err := s.store.LoadTemp(ctx, wavPath)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("load wav: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("read wav: %w", err)
	}

	buf, format, err := audio.ReadWAV(bytes.NewReader(data))
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	return buf, format, nil
}

// publishSegments encodes every segment as WAV and publishes it, at most
// maxConcurrentWrites at a time. The returned records keep segment order.
// On failure the records of segments already published are returned with
// the error.
func (s *SplitService) publishSegments(ctx context.Context, job *Job, workDir, prefix string, segments []segment.Segment, format audio.Format) ([]SegmentRecord, error) {
	records := make([]SegmentRecord, len(segments))
	if len(segments) == 0 {
		return records, nil
	}

	var (
		progressMu sync.Mutex
		written    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentWrites)

	for i, seg := range segments {
		g.Go(func() error {
			name := audio.SegmentFilename(prefix, seg.Index)
			location, err := s.publishSegment(gctx, workDir, s.key(job, name), seg, format)
			if err != nil {
				return fmt.Errorf("segment %d (%s): %w", seg.Index, name, err)
			}

			records[i] = SegmentRecord{
				Index:       seg.Index,
				StartSample: seg.StartSample,
				EndSample:   seg.EndSample,
				StartTime:   seg.StartTime,
				EndTime:     seg.EndTime,
				Location:    location,
			}

			progressMu.Lock()
			written++
			job.AdvanceProgress(progressSplit + written*(progressWritten-progressSplit)/len(segments))
			s.save(gctx, job)
			progressMu.Unlock()

			s.logger.Debug("segment written",
				slog.String("job_id", job.ID),
				slog.Int("index", seg.Index),
				slog.String("location", location),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		published := slices.DeleteFunc(records, func(r SegmentRecord) bool {
			return r.Location == ""
		})
		return published, err
	}
	return records, nil
}

// recordRanges maps segment ordinals to the time ranges of records.
func recordRanges(records []SegmentRecord) map[string][2]string {
	ranges := make(map[string][2]string, len(records))
	for _, r := range records {
		ranges[strconv.Itoa(r.Index)] = [2]string{r.StartTime, r.EndTime}
	}
	return ranges
}

// publishSegment writes seg to a temporary WAV file and publishes it under key.
func (s *SplitService) publishSegment(ctx context.Context, workDir, key string, seg segment.Segment, format audio.Format) (string, error) {
	f, err := os.CreateTemp(workDir, "segment_*.wav")
	if err != nil {
		return "", fmt.Errorf("create segment file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	if err := audio.WriteWAV(f, seg.Samples, format); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind segment file: %w", err)
	}

	return s.store.Publish(ctx, key, f)
}

// key returns the storage key of an output file of job.
func (s *SplitService) key(job *Job, name string) string {
	if s.flatOutput {
		return name
	}
	return path.Join(job.ID, name)
}

// save persists job, logging instead of failing so progress updates never
// abort processing.
func (s *SplitService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SplitService) output(job *Job) *SplitOutput {
	snapshot := job.Clone()
	return &SplitOutput{
		JobID:            snapshot.ID,
		Status:           snapshot.Status,
		Segments:         snapshot.Segments,
		ManifestLocation: snapshot.ManifestLocation,
		Warnings:         snapshot.Warnings,
		Error:            snapshot.Error,
	}
}
