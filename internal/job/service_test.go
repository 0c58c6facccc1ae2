package job

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/segment"
	"github.com/maauso/audiosplit-api/internal/storage"
)

const fixtureRate = 8000

// wavFixture encodes mono 16-bit PCM: one entry per second, true for a loud
// second and false for a silent one.
func wavFixture(t *testing.T, pattern ...bool) []byte {
	t.Helper()

	samples := make([]int, 0, len(pattern)*fixtureRate)
	for _, loud := range pattern {
		for i := range fixtureRate {
			v := 0
			if loud {
				v = 10000
				if i%2 == 1 {
					v = -10000
				}
			}
			samples = append(samples, v)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.WriteWAV(f, samples, audio.Format{SampleRate: fixtureRate, Channels: 1, BitDepth: 16}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

type serviceFixture struct {
	svc       *SplitService
	repo      *MemoryRepository
	tempDir   string
	outputDir string
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) serviceFixture {
	t.Helper()
	root := t.TempDir()
	tempDir := filepath.Join(root, "tmp")
	outputDir := filepath.Join(root, "out")

	store, err := storage.NewLocalStorage(tempDir, outputDir)
	require.NoError(t, err)

	repo := NewMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSplitService(repo, audio.NewFFmpegConverter(""), store, logger, opts...)

	return serviceFixture{svc: svc, repo: repo, tempDir: tempDir, outputDir: outputDir}
}

func threshold(v float64) *float64 { return &v }

func TestNewSplitService(t *testing.T) {
	repo := NewMemoryRepository()

	svc := NewSplitService(repo, nil, nil, nil)
	require.NotNil(t, svc)
	assert.Same(t, repo, svc.repo)
	assert.NotNil(t, svc.logger)
	assert.Equal(t, defaultMaxConcurrentWrites, svc.maxConcurrentWrites)
	assert.Equal(t, segment.DefaultWindowConfig(), svc.defaults)
	assert.False(t, svc.flatOutput)

	cfg := segment.NewWindowConfig(0.3, 0.01)
	svc = NewSplitService(repo, nil, nil, nil,
		WithMaxConcurrentWrites(8),
		WithDefaultWindow(cfg),
		WithFlatOutput(),
	)
	assert.Equal(t, 8, svc.maxConcurrentWrites)
	assert.Equal(t, cfg, svc.defaults)
	assert.True(t, svc.flatOutput)
}

func TestWithMaxConcurrentWrites_IgnoresInvalid(t *testing.T) {
	for _, n := range []int{0, -1} {
		svc := NewSplitService(NewMemoryRepository(), nil, nil, nil, WithMaxConcurrentWrites(n))
		assert.Equal(t, defaultMaxConcurrentWrites, svc.maxConcurrentWrites)
	}
}

func TestSplitService_CreateJob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, SplitInput{
		Filename:         "/uploads/talk.wav",
		Audio:            []byte("data"),
		WindowDuration:   0.5,
		SilenceThreshold: threshold(0),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, "talk.wav", job.InputName)
	assert.InDelta(t, 0.5, job.WindowDuration, 1e-12)
	assert.Zero(t, job.SilenceThreshold)

	saved, err := f.repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, saved.ID)
}

func TestSplitService_CreateJob_Defaults(t *testing.T) {
	f := newServiceFixture(t)

	job, err := f.svc.CreateJob(context.Background(), SplitInput{Filename: "talk.wav", Audio: []byte("data")})
	require.NoError(t, err)

	assert.InDelta(t, segment.DefaultWindowDuration, job.WindowDuration, 1e-12)
	assert.InDelta(t, segment.DefaultSilenceThreshold, job.SilenceThreshold, 1e-12)
}

func TestSplitService_CreateJob_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   SplitInput
		wantErr error
	}{
		{
			name:    "missing filename",
			input:   SplitInput{Audio: []byte("data")},
			wantErr: ErrMissingFilename,
		},
		{
			name:    "empty audio",
			input:   SplitInput{Filename: "talk.wav"},
			wantErr: ErrEmptyAudio,
		},
		{
			name:    "negative window",
			input:   SplitInput{Filename: "talk.wav", Audio: []byte("data"), WindowDuration: -1},
			wantErr: segment.ErrInvalidConfig,
		},
		{
			name:    "threshold of one",
			input:   SplitInput{Filename: "talk.wav", Audio: []byte("data"), SilenceThreshold: threshold(1)},
			wantErr: segment.ErrInvalidConfig,
		},
		{
			name:    "negative threshold",
			input:   SplitInput{Filename: "talk.wav", Audio: []byte("data"), SilenceThreshold: threshold(-0.1)},
			wantErr: segment.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)

			job, err := f.svc.CreateJob(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, job)

			jobs, err := f.repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestSplitService_Process(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	out, err := f.svc.Process(ctx, SplitInput{
		Filename: "talk.wav",
		Audio:    wavFixture(t, true, false, true),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Empty(t, out.Error)
	assert.Empty(t, out.Warnings)
	require.Len(t, out.Segments, 2)

	for i, seg := range out.Segments {
		assert.Equal(t, i, seg.Index)
		assert.Equal(t, filepath.Join(f.outputDir, out.JobID, audio.SegmentFilename("talk", i)), seg.Location)

		file, err := os.Open(seg.Location)
		require.NoError(t, err)
		buf, format, err := audio.ReadWAV(file)
		_ = file.Close()
		require.NoError(t, err)
		assert.Equal(t, fixtureRate, format.SampleRate)
		assert.Equal(t, seg.EndSample-seg.StartSample, buf.Frames())
	}
	assert.Zero(t, out.Segments[0].StartSample)
	assert.Equal(t, out.Segments[0].EndSample, out.Segments[1].StartSample)
	assert.Equal(t, 3*fixtureRate, out.Segments[1].EndSample)
	assert.Equal(t, "00:00:00.001", out.Segments[0].StartTime)
	assert.Equal(t, "00:00:03.001", out.Segments[1].EndTime)

	assert.Equal(t, filepath.Join(f.outputDir, out.JobID, "talk.json"), out.ManifestLocation)
	manifest, err := os.ReadFile(out.ManifestLocation)
	require.NoError(t, err)
	var ranges map[string][2]string
	require.NoError(t, json.Unmarshal(manifest, &ranges))
	assert.Len(t, ranges, 2)
	assert.Equal(t, "00:00:03.001", ranges["1"][1])

	job, err := f.svc.GetJob(ctx, out.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, fixtureRate, job.SampleRate)
	assert.Equal(t, "0:0:3", job.Duration)
	assert.Len(t, job.Segments, 2)
	assert.Equal(t, ranges, job.TimeRanges)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.CompletedAt.IsZero())

	// Uploads and intermediate files are removed.
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplitService_Process_FlatOutput(t *testing.T) {
	f := newServiceFixture(t, WithFlatOutput(), WithMaxConcurrentWrites(1))

	out, err := f.svc.Process(context.Background(), SplitInput{
		Filename: "speech.wav",
		Audio:    wavFixture(t, true, false, true),
	})
	require.NoError(t, err)

	require.Len(t, out.Segments, 2)
	assert.Equal(t, filepath.Join(f.outputDir, "speech_000.wav"), out.Segments[0].Location)
	assert.Equal(t, filepath.Join(f.outputDir, "speech_001.wav"), out.Segments[1].Location)
	assert.FileExists(t, filepath.Join(f.outputDir, "speech.json"))
}

func TestSplitService_Process_AllSilent(t *testing.T) {
	f := newServiceFixture(t)

	out, err := f.svc.Process(context.Background(), SplitInput{
		Filename: "quiet.wav",
		Audio:    wavFixture(t, false, false),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Empty(t, out.Segments)

	manifest, err := os.ReadFile(out.ManifestLocation)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(manifest))
}

func TestSplitService_Process_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   SplitInput
		wantErr error
	}{
		{
			name:    "not a wav file",
			input:   SplitInput{Filename: "broken.wav", Audio: []byte("definitely not RIFF data")},
			wantErr: audio.ErrInvalidWAV,
		},
		{
			name: "shorter than one window",
			input: SplitInput{
				Filename:       "short.wav",
				Audio:          wavFixture(t, true),
				WindowDuration: 2,
			},
			wantErr: segment.ErrEmptyInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)

			out, err := f.svc.Process(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, out)
			assert.Equal(t, StatusFailed, out.Status)
			assert.NotEmpty(t, out.Error)

			job, err := f.svc.GetJob(context.Background(), out.JobID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, job.Status)
			assert.Equal(t, out.Error, job.Error)

			entries, err := os.ReadDir(f.tempDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

// failingPublishStorage is a local storage whose Publish always fails.
type failingPublishStorage struct {
	*storage.LocalStorage
}

var errPublish = errors.New("bucket unavailable")

func (s failingPublishStorage) Publish(context.Context, string, io.Reader) (string, error) {
	return "", errPublish
}

func TestSplitService_Process_PublishFailure(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	repo := NewMemoryRepository()
	svc := NewSplitService(repo, audio.NewFFmpegConverter(""), failingPublishStorage{local}, nil)

	out, err := svc.Process(context.Background(), SplitInput{
		Filename: "talk.wav",
		Audio:    wavFixture(t, true, false, true),
	})
	require.ErrorIs(t, err, errPublish)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Error, "talk_00")
}

// partialPublishStorage fails Publish for keys containing failOn.
type partialPublishStorage struct {
	*storage.LocalStorage
	failOn string
}

func (s partialPublishStorage) Publish(ctx context.Context, key string, r io.Reader) (string, error) {
	if strings.Contains(key, s.failOn) {
		return "", errPublish
	}
	return s.LocalStorage.Publish(ctx, key, r)
}

func TestSplitService_Process_PartialPublishFailure(t *testing.T) {
	outputDir := t.TempDir()
	local, err := storage.NewLocalStorage(t.TempDir(), outputDir)
	require.NoError(t, err)

	repo := NewMemoryRepository()
	svc := NewSplitService(repo, audio.NewFFmpegConverter(""), partialPublishStorage{local, "_001"}, nil,
		WithMaxConcurrentWrites(1),
	)

	out, err := svc.Process(context.Background(), SplitInput{
		Filename: "talk.wav",
		Audio:    wavFixture(t, true, false, true),
	})
	require.ErrorIs(t, err, errPublish)
	assert.Equal(t, StatusFailed, out.Status)

	require.Len(t, out.Segments, 1)
	assert.Equal(t, 0, out.Segments[0].Index)
	assert.Equal(t, filepath.Join(outputDir, out.JobID, "talk_000.wav"), out.Segments[0].Location)
	assert.FileExists(t, out.Segments[0].Location)

	job, err := repo.FindByID(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	require.Len(t, job.Segments, 1)
	assert.Equal(t, map[string][2]string{"0": {job.Segments[0].StartTime, job.Segments[0].EndTime}}, job.TimeRanges)
	assert.Empty(t, job.ManifestLocation)
}

// progressRecorder records the progress of every saved job snapshot.
type progressRecorder struct {
	*MemoryRepository
	mu   sync.Mutex
	seen []int
}

func (r *progressRecorder) Save(ctx context.Context, job *Job) error {
	snapshot := job.Clone()
	r.mu.Lock()
	r.seen = append(r.seen, snapshot.Progress)
	r.mu.Unlock()
	return r.MemoryRepository.Save(ctx, snapshot)
}

func TestSplitService_Process_ProgressNeverDecreases(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	repo := &progressRecorder{MemoryRepository: NewMemoryRepository()}
	svc := NewSplitService(repo, audio.NewFFmpegConverter(""), local, nil, WithMaxConcurrentWrites(4))

	pattern := make([]bool, 0, 16)
	for i := range 16 {
		pattern = append(pattern, i%2 == 0)
	}
	out, err := svc.Process(context.Background(), SplitInput{
		Filename: "talk.wav",
		Audio:    wavFixture(t, pattern...),
	})
	require.NoError(t, err)
	require.Greater(t, len(out.Segments), 4)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.IsNonDecreasing(t, repo.seen)
	assert.Equal(t, 100, repo.seen[len(repo.seen)-1])
}

// blockingConverter blocks until its context is done.
type blockingConverter struct {
	started chan struct{}
}

func (c blockingConverter) ToWAV(ctx context.Context, _, _ string) (string, error) {
	close(c.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSplitService_CancelJob_Queued(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	input := SplitInput{Filename: "talk.wav", Audio: wavFixture(t, true, false, true)}
	created, err := f.svc.CreateJob(ctx, input)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	stored, err := f.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.False(t, stored.CompletedAt.IsZero())

	// A cancelled job is never picked up.
	_, err = f.svc.ProcessExistingJob(ctx, created.ID, input)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.CancelJob(ctx, created.ID)
	assert.ErrorIs(t, err, ErrJobFinished)

	_, err = f.svc.CancelJob(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSplitService_CancelJob_Running(t *testing.T) {
	root := t.TempDir()
	tempDir := filepath.Join(root, "tmp")
	local, err := storage.NewLocalStorage(tempDir, filepath.Join(root, "out"))
	require.NoError(t, err)

	converter := blockingConverter{started: make(chan struct{})}
	repo := NewMemoryRepository()
	svc := NewSplitService(repo, converter, local, nil)
	ctx := context.Background()

	input := SplitInput{Filename: "talk.mp3", Audio: []byte("ID3")}
	created, err := svc.CreateJob(ctx, input)
	require.NoError(t, err)

	type result struct {
		out *SplitOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := svc.ProcessExistingJob(ctx, created.ID, input)
		done <- result{out, err}
	}()

	select {
	case <-converter.started:
	case <-time.After(5 * time.Second):
		t.Fatal("processing never reached conversion")
	}

	running, err := svc.CancelJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, running.Status)

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("processing did not stop after cancellation")
	}
	require.ErrorIs(t, res.err, ErrJobCancelled)
	assert.Equal(t, StatusCancelled, res.out.Status)
	assert.Empty(t, res.out.Error)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	svc.mu.Lock()
	assert.Empty(t, svc.active)
	svc.mu.Unlock()

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = svc.CancelJob(ctx, created.ID)
	assert.ErrorIs(t, err, ErrJobFinished)
}

func TestSplitService_Process_CallerCancellationFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.svc.Process(ctx, SplitInput{
		Filename: "talk.wav",
		Audio:    wavFixture(t, true, false, true),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestSplitService_ProcessExistingJob_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	out, err := f.svc.ProcessExistingJob(context.Background(), "nonexistent", SplitInput{})
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Nil(t, out)
}

func TestSplitService_ProcessExistingJob_AlreadyRunning(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	input := SplitInput{Filename: "talk.wav", Audio: wavFixture(t, true)}
	job, err := f.svc.CreateJob(ctx, input)
	require.NoError(t, err)
	require.NoError(t, job.Start())
	require.NoError(t, f.repo.Save(ctx, job))

	_, err = f.svc.ProcessExistingJob(ctx, job.ID, input)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSplitService_ListJobs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"job-c", "job-a", "job-b"} {
		job := NewWithID(id)
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, f.repo.Save(ctx, job))
	}

	jobs, err := f.svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-c", jobs[0].ID)
	assert.Equal(t, "job-a", jobs[1].ID)
	assert.Equal(t, "job-b", jobs[2].ID)
}

func TestSplitService_DeleteJob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	queued := NewWithID("job-queued")
	require.NoError(t, f.repo.Save(ctx, queued))
	assert.ErrorIs(t, f.svc.DeleteJob(ctx, queued.ID), ErrJobActive)

	done := NewWithID("job-done")
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete())
	require.NoError(t, f.repo.Save(ctx, done))
	require.NoError(t, f.svc.DeleteJob(ctx, done.ID))

	_, err := f.repo.FindByID(ctx, done.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, f.svc.DeleteJob(ctx, "nonexistent"), ErrJobNotFound)
}
