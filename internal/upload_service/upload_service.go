package upload_service

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSource = errors.New("invalid upload source")
	ErrPartialUpload = errors.New("one or more chunks failed to upload")
	ErrConcatFailed  = errors.New("server-side concat failed")
)

type Phase string

const (
	PhasePlanning      Phase = "planning"
	PhaseTransferring  Phase = "transferring"
	PhaseConcatenating Phase = "concatenating"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// ProgressEvent is emitted on every phase change and chunk completion.
type ProgressEvent struct {
	JobID     string
	Phase     Phase
	Index     int // chunk index, -1 for job level events
	Completed int
	Failed    int
	Total     int
	InFlight  int
	Message   string
}

type ProgressFunc func(ProgressEvent)

type UploadRequest struct {
	LocalPath string
	TargetDir string
	// RemoteName defaults to the base name of LocalPath.
	RemoteName string
	Progress   ProgressFunc
}

type ChunkFailure struct {
	Index int
	Err   error
}

type UploadJobResult struct {
	JobID        string
	Phase        Phase
	Success      bool
	RemotePath   string
	Bytes        int64
	ChunkCount   int
	FailedChunks []ChunkFailure
	Elapsed      time.Duration
}

// FailedIndices lists the failed chunk indices in ascending order.
func (r *UploadJobResult) FailedIndices() []int {
	out := make([]int, 0, len(r.FailedChunks))
	for _, f := range r.FailedChunks {
		out = append(out, f.Index)
	}
	return out
}

type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadJobResult, error)
}
