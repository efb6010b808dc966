package chunked

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/log_service"
	"github.com/AnishMulay/hdfswindow/internal/protocol_client"
	"github.com/AnishMulay/hdfswindow/internal/status_cache"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"
)

const cleanupTimeout = 30 * time.Second

type Options struct {
	BlockSize     int64
	Workers       int
	ChunkAttempts int
	// CleanupFailedParts deletes uploaded parts when the job cannot finish.
	CleanupFailedParts bool
}

type ChunkedUploadService struct {
	client protocol_client.ProtocolClient
	cache  status_cache.StatusCache
	ls     log_service.LogService
	opts   Options
}

func NewChunkedUploadService(client protocol_client.ProtocolClient, cache status_cache.StatusCache, ls log_service.LogService, opts Options) *ChunkedUploadService {
	if opts.BlockSize <= 0 {
		opts.BlockSize = upload_service.DefaultBlockSize
	}
	if opts.Workers <= 0 {
		opts.Workers = upload_service.DefaultWorkers
	}
	if opts.ChunkAttempts <= 0 {
		opts.ChunkAttempts = 1
	}
	return &ChunkedUploadService{client: client, cache: cache, ls: ls, opts: opts}
}

// job carries the state of one Upload call.
type job struct {
	id       string
	plan     upload_service.ChunkPlan
	progress upload_service.ProgressFunc
	inFlight atomic.Int32
	started  time.Time
}

func (j *job) emit(ev upload_service.ProgressEvent) {
	if j.progress == nil {
		return
	}
	ev.JobID = j.id
	ev.Total = j.plan.BlockCount
	ev.InFlight = int(j.inFlight.Load())
	j.progress(ev)
}

type chunkEvent struct {
	index   int
	started bool
	err     error
}

func (s *ChunkedUploadService) Upload(ctx context.Context, req upload_service.UploadRequest) (*upload_service.UploadJobResult, error) {
	j := &job{id: uuid.NewString(), progress: req.Progress, started: time.Now()}
	result := &upload_service.UploadJobResult{JobID: j.id, Phase: upload_service.PhasePlanning}

	info, err := os.Stat(req.LocalPath)
	if err != nil {
		return s.fail(j, result, fmt.Errorf("%w: %v", upload_service.ErrInvalidSource, err))
	}
	if info.IsDir() {
		return s.fail(j, result, fmt.Errorf("%w: %s is a directory", upload_service.ErrInvalidSource, req.LocalPath))
	}

	name := req.RemoteName
	if name == "" {
		name = filepath.Base(req.LocalPath)
	}
	plan, err := upload_service.Plan(req.LocalPath, info.Size(), s.opts.BlockSize, req.TargetDir, name)
	if err != nil {
		return s.fail(j, result, err)
	}
	j.plan = plan
	result.RemotePath = plan.RemotePath()
	result.Bytes = plan.FileSize
	result.ChunkCount = plan.BlockCount

	s.ls.Info(log_service.LogEvent{
		Message: "Upload planned",
		Metadata: map[string]any{
			"job": j.id, "source": req.LocalPath, "remote": result.RemotePath,
			"size": humanize.IBytes(uint64(plan.FileSize)), "chunks": plan.BlockCount, "workers": s.opts.Workers,
		},
	})
	j.emit(upload_service.ProgressEvent{Phase: upload_service.PhasePlanning, Index: -1, Message: "planned"})

	if s.cache != nil {
		defer s.cache.Invalidate(plan.TargetDir)
	}

	if _, err := s.client.Mkdirs(ctx, plan.TargetDir); err != nil {
		return s.fail(j, result, err)
	}

	if plan.SingleShot() {
		return s.uploadWhole(ctx, j, result)
	}

	result.Phase = upload_service.PhaseTransferring
	failures := s.transfer(ctx, j)
	if len(failures) > 0 {
		result.FailedChunks = failures
		s.cleanup(ctx, j)
		return s.fail(j, result, fmt.Errorf("%w: %d of %d chunks failed (first: chunk %d: %v)",
			upload_service.ErrPartialUpload, len(failures), plan.BlockCount, failures[0].Index, failures[0].Err))
	}

	result.Phase = upload_service.PhaseConcatenating
	j.emit(upload_service.ProgressEvent{Phase: upload_service.PhaseConcatenating, Index: -1, Completed: plan.BlockCount})
	if err := s.concat(ctx, j); err != nil {
		s.cleanup(ctx, j)
		return s.fail(j, result, fmt.Errorf("%w: %w", upload_service.ErrConcatFailed, err))
	}

	return s.succeed(j, result), nil
}

func (s *ChunkedUploadService) uploadWhole(ctx context.Context, j *job, result *upload_service.UploadJobResult) (*upload_service.UploadJobResult, error) {
	result.Phase = upload_service.PhaseTransferring
	j.emit(upload_service.ProgressEvent{Phase: upload_service.PhaseTransferring, Index: 0, Message: "single-shot upload"})

	j.inFlight.Add(1)
	err := s.uploadSection(ctx, j.plan.SourcePath, j.plan.RemotePath(), 0, j.plan.FileSize)
	j.inFlight.Add(-1)
	if err != nil {
		result.FailedChunks = []upload_service.ChunkFailure{{Index: 0, Err: err}}
		return s.fail(j, result, err)
	}
	j.plan.Tasks[0].State = upload_service.ChunkSucceeded
	j.emit(upload_service.ProgressEvent{Phase: upload_service.PhaseTransferring, Index: 0, Completed: 1})
	return s.succeed(j, result), nil
}

// transfer runs one goroutine per chunk behind a Workers-wide semaphore and
// collects exactly one completion event per chunk. Failures come back sorted
// by chunk index.
func (s *ChunkedUploadService) transfer(ctx context.Context, j *job) []upload_service.ChunkFailure {
	tasks := j.plan.Tasks
	gate := semaphore.NewWeighted(int64(s.opts.Workers))
	// every chunk sends at most one start and exactly one finish event
	events := make(chan chunkEvent, 2*len(tasks))

	for _, task := range tasks {
		go func(task upload_service.ChunkTask) {
			if err := gate.Acquire(ctx, 1); err != nil {
				events <- chunkEvent{index: task.Index, err: err}
				return
			}
			defer gate.Release(1)

			j.inFlight.Add(1)
			events <- chunkEvent{index: task.Index, started: true}
			err := s.uploadChunk(ctx, j, task)
			j.inFlight.Add(-1)
			events <- chunkEvent{index: task.Index, err: err}
		}(task)
	}

	var (
		failures  []upload_service.ChunkFailure
		completed int
	)
	for completed+len(failures) < len(tasks) {
		ev := <-events
		if ev.started {
			tasks[ev.index].State = upload_service.ChunkInFlight
			continue
		}
		if ev.err != nil {
			tasks[ev.index].State = upload_service.ChunkFailed
			failures = append(failures, upload_service.ChunkFailure{Index: ev.index, Err: ev.err})
			s.ls.Warn(log_service.LogEvent{
				Message:  "Chunk upload failed",
				Metadata: map[string]any{"job": j.id, "chunk": ev.index, "error": ev.err.Error()},
			})
		} else {
			tasks[ev.index].State = upload_service.ChunkSucceeded
			completed++
		}
		j.emit(upload_service.ProgressEvent{
			Phase:     upload_service.PhaseTransferring,
			Index:     ev.index,
			Completed: completed,
			Failed:    len(failures),
		})
	}

	slices.SortFunc(failures, func(a, b upload_service.ChunkFailure) int { return a.Index - b.Index })
	return failures
}

func (s *ChunkedUploadService) uploadChunk(ctx context.Context, j *job, task upload_service.ChunkTask) error {
	part := j.plan.PartPath(task.Index)
	var err error
	for attempt := 1; attempt <= s.opts.ChunkAttempts; attempt++ {
		err = s.uploadSection(ctx, j.plan.SourcePath, part, task.Offset, task.Length)
		if err == nil {
			s.ls.Debug(log_service.LogEvent{
				Message:  "Chunk uploaded",
				Metadata: map[string]any{"job": j.id, "chunk": task.Index, "part": part, "bytes": task.Length, "attempt": attempt},
			})
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < s.opts.ChunkAttempts {
			s.ls.Debug(log_service.LogEvent{
				Message:  "Retrying chunk",
				Metadata: map[string]any{"job": j.id, "chunk": task.Index, "attempt": attempt, "error": err.Error()},
			})
		}
	}
	return err
}

// uploadSection opens the source itself so concurrent chunks never share a
// file offset.
func (s *ChunkedUploadService) uploadSection(ctx context.Context, source, remote string, offset, length int64) error {
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: %v", upload_service.ErrInvalidSource, err)
	}
	defer f.Close()
	return s.client.CreateAndUpload(ctx, remote, f, offset, length)
}

// concat creates the empty destination and appends every part in index order.
func (s *ChunkedUploadService) concat(ctx context.Context, j *job) error {
	dest := j.plan.RemotePath()
	if err := s.client.CreateAndUpload(ctx, dest, bytes.NewReader(nil), 0, 0); err != nil {
		return err
	}

	parts := j.plan.PartPaths()
	s.ls.Debug(log_service.LogEvent{
		Message:  "Concatenating parts",
		Metadata: map[string]any{"job": j.id, "remote": dest, "parts": len(parts)},
	})
	return s.client.Concat(ctx, dest, parts)
}

// cleanup removes the parts of a job that cannot finish, when enabled. Every
// index is attempted since a chunk that failed mid-stream may still have left
// a partial part behind; missing parts are skipped.
func (s *ChunkedUploadService) cleanup(ctx context.Context, j *job) {
	if !s.opts.CleanupFailedParts {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	removed := 0
	for i := 0; i < j.plan.BlockCount; i++ {
		part := j.plan.PartPath(i)
		ok, err := s.client.Delete(cctx, part, false)
		if err != nil {
			if !errors.Is(err, protocol_client.ErrNotFound) {
				s.ls.Warn(log_service.LogEvent{
					Message:  "Failed to remove part",
					Metadata: map[string]any{"job": j.id, "part": part, "error": err.Error()},
				})
			}
			continue
		}
		if ok {
			removed++
		}
	}
	s.ls.Info(log_service.LogEvent{
		Message:  "Removed parts of failed upload",
		Metadata: map[string]any{"job": j.id, "removed": removed},
	})
}

func (s *ChunkedUploadService) succeed(j *job, result *upload_service.UploadJobResult) *upload_service.UploadJobResult {
	result.Phase = upload_service.PhaseDone
	result.Success = true
	result.Elapsed = time.Since(j.started)

	s.ls.Info(log_service.LogEvent{
		Message: "Upload completed",
		Metadata: map[string]any{
			"job": j.id, "remote": result.RemotePath, "bytes": humanize.IBytes(uint64(result.Bytes)),
			"chunks": result.ChunkCount, "elapsed": result.Elapsed.String(),
		},
	})
	j.emit(upload_service.ProgressEvent{Phase: upload_service.PhaseDone, Index: -1, Completed: result.ChunkCount})
	return result
}

func (s *ChunkedUploadService) fail(j *job, result *upload_service.UploadJobResult, err error) (*upload_service.UploadJobResult, error) {
	result.Phase = upload_service.PhaseFailed
	result.Success = false
	result.Elapsed = time.Since(j.started)

	s.ls.Error(log_service.LogEvent{
		Message:  "Upload failed",
		Metadata: map[string]any{"job": j.id, "remote": result.RemotePath, "failed_chunks": result.FailedIndices(), "error": err.Error()},
	})
	j.emit(upload_service.ProgressEvent{
		Phase:   upload_service.PhaseFailed,
		Index:   -1,
		Failed:  len(result.FailedChunks),
		Message: err.Error(),
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, fmt.Errorf("upload %s cancelled: %w", j.id, err)
	}
	return result, err
}

var _ upload_service.UploadService = (*ChunkedUploadService)(nil)
