package file_service

import (
	"context"

	internalerrors "github.com/AnishMulay/hdfswindow/internal/file_service/internal"
	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
)

var (
	ErrNotAFile           = internalerrors.ErrNotAFile
	ErrNotDirectory       = internalerrors.ErrNotDirectory
	ErrMkdirRefused       = internalerrors.ErrMkdirRefused
	ErrDeleteRefused      = internalerrors.ErrDeleteRefused
	ErrDownloadIncomplete = internalerrors.ErrDownloadIncomplete
)

// FileService is what the CLI and the MCP tools talk to: cached listings,
// reads, transfers and mutations against one cluster.
type FileService interface {
	ListDirectory(ctx context.Context, path string) (file_status.DirectoryListing, error)
	Stat(ctx context.Context, path string) (file_status.FileStatus, error)
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
	// ReadTail returns the last size bytes of a file (all of it when smaller).
	ReadTail(ctx context.Context, path string, size int64) ([]byte, file_status.FileStatus, error)
	Download(ctx context.Context, remotePath, localPath string) (int64, error)
	Upload(ctx context.Context, req upload_service.UploadRequest) (*upload_service.UploadJobResult, error)
	Mkdir(ctx context.Context, path string) error
	Delete(ctx context.Context, path string, recursive bool) error
	// Navigate lists path, cancelling any navigation still in progress.
	Navigate(ctx context.Context, path string) (file_status.DirectoryListing, error)
	// Refresh drops every cached listing and reloads the datanode address table.
	Refresh(ctx context.Context) (map[string]string, error)
}
