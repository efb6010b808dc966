package protocol_client

import (
	"context"
	"io"

	"github.com/AnishMulay/hdfswindow/internal/file_status"
)

const (
	OpListStatus    = "LISTSTATUS"
	OpGetFileStatus = "GETFILESTATUS"
	OpOpen          = "OPEN"
	OpMkdirs        = "MKDIRS"
	OpCreate        = "CREATE"
	OpConcat        = "CONCAT"
	OpDelete        = "DELETE"
)

// ProtocolClient speaks the WebHDFS REST dialect against one namenode gateway.
// Paths are absolute remote paths or fully qualified hdfs:// / http:// locators.
type ProtocolClient interface {
	ListStatus(ctx context.Context, path string) ([]file_status.FileStatus, error)
	GetFileStatus(ctx context.Context, path string) (file_status.FileStatus, error)

	// ReadRange returns at most length bytes starting at offset.
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
	// Open streams the file from offset. A length <= 0 reads to the end.
	Open(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)

	Mkdirs(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string, recursive bool) (bool, error)

	// CreateAndUpload creates (or overwrites) path with the bytes
	// [offset, offset+length) of src.
	CreateAndUpload(ctx context.Context, path string, src io.ReaderAt, offset, length int64) error
	// Concat appends sources, in the given order, onto the existing dest.
	Concat(ctx context.Context, dest string, sources []string) error

	LiveNodesURL() string
}
