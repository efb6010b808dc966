package upload_service

import (
	"fmt"
	pathpkg "path"
	"strings"
)

const (
	DefaultBlockSize int64 = 64 << 20
	DefaultWorkers         = 8
)

type ChunkState int

const (
	ChunkPending ChunkState = iota
	ChunkInFlight
	ChunkSucceeded
	ChunkFailed
)

func (s ChunkState) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkInFlight:
		return "in-flight"
	case ChunkSucceeded:
		return "succeeded"
	case ChunkFailed:
		return "failed"
	default:
		return fmt.Sprintf("ChunkState(%d)", int(s))
	}
}

type ChunkTask struct {
	Index  int
	Offset int64
	Length int64
	State  ChunkState
}

// ChunkPlan partitions one local file into fixed-size sections.
type ChunkPlan struct {
	SourcePath string
	FileSize   int64
	BlockSize  int64
	BlockCount int
	TargetDir  string
	FinalName  string
	Tasks      []ChunkTask
}

// Plan splits size bytes into ceil(size/blockSize) tasks, never fewer than one.
// Task offsets are contiguous and their lengths sum to size.
func Plan(sourcePath string, size, blockSize int64, targetDir, finalName string) (ChunkPlan, error) {
	if size < 0 {
		return ChunkPlan{}, fmt.Errorf("%w: negative size %d", ErrInvalidSource, size)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if finalName == "" || strings.Contains(finalName, "/") {
		return ChunkPlan{}, fmt.Errorf("%w: bad remote name %q", ErrInvalidSource, finalName)
	}
	if !strings.HasPrefix(targetDir, "/") {
		targetDir = "/" + targetDir
	}

	count := int((size + blockSize - 1) / blockSize)
	if count == 0 {
		count = 1
	}

	tasks := make([]ChunkTask, count)
	for i := range tasks {
		offset := int64(i) * blockSize
		length := blockSize
		if remaining := size - offset; remaining < length {
			length = remaining
		}
		tasks[i] = ChunkTask{Index: i, Offset: offset, Length: length, State: ChunkPending}
	}

	return ChunkPlan{
		SourcePath: sourcePath,
		FileSize:   size,
		BlockSize:  blockSize,
		BlockCount: count,
		TargetDir:  pathpkg.Clean(targetDir),
		FinalName:  finalName,
		Tasks:      tasks,
	}, nil
}

// PartName is the remote name of chunk index: <finalName>_p_00007.
func PartName(finalName string, index int) string {
	return fmt.Sprintf("%s_p_%05d", finalName, index)
}

func (p ChunkPlan) RemotePath() string {
	return pathpkg.Join(p.TargetDir, p.FinalName)
}

func (p ChunkPlan) PartPath(index int) string {
	return pathpkg.Join(p.TargetDir, PartName(p.FinalName, index))
}

// PartPaths lists every part path in ascending index order.
func (p ChunkPlan) PartPaths() []string {
	out := make([]string, p.BlockCount)
	for i := range out {
		out[i] = p.PartPath(i)
	}
	return out
}

// SingleShot reports whether the file is small enough to skip chunking.
func (p ChunkPlan) SingleShot() bool {
	return p.FileSize < p.BlockSize
}
