package simple

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AnishMulay/hdfswindow/internal/file_service"
	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/AnishMulay/hdfswindow/internal/log_service"
	"github.com/AnishMulay/hdfswindow/internal/protocol_client"
	"github.com/AnishMulay/hdfswindow/internal/status_cache"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
	"github.com/dustin/go-humanize"
)

// AddressRefresher reloads the datanode address table from a JMX endpoint.
type AddressRefresher interface {
	Refresh(ctx context.Context, endpoint string) (map[string]string, error)
}

type SimpleFileService struct {
	client    protocol_client.ProtocolClient
	cache     status_cache.StatusCache
	navigator *status_cache.Navigator
	uploader  upload_service.UploadService
	addresses AddressRefresher
	ls        log_service.LogService
	tailSize  int64
}

func NewSimpleFileService(
	client protocol_client.ProtocolClient,
	cache status_cache.StatusCache,
	uploader upload_service.UploadService,
	addresses AddressRefresher,
	ls log_service.LogService,
	tailSize int64,
) *SimpleFileService {
	if tailSize <= 0 {
		tailSize = 100 << 10
	}
	return &SimpleFileService{
		client:    client,
		cache:     cache,
		navigator: status_cache.NewNavigator(cache),
		uploader:  uploader,
		addresses: addresses,
		ls:        ls,
		tailSize:  tailSize,
	}
}

func (s *SimpleFileService) ListDirectory(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	return s.cache.Get(ctx, path)
}

func (s *SimpleFileService) Navigate(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	return s.navigator.Navigate(ctx, path)
}

func (s *SimpleFileService) Stat(ctx context.Context, path string) (file_status.FileStatus, error) {
	return s.client.GetFileStatus(ctx, path)
}

func (s *SimpleFileService) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	return s.client.ReadRange(ctx, path, offset, length)
}

func (s *SimpleFileService) ReadTail(ctx context.Context, path string, size int64) ([]byte, file_status.FileStatus, error) {
	if size <= 0 {
		size = s.tailSize
	}
	fs, err := s.client.GetFileStatus(ctx, path)
	if err != nil {
		return nil, file_status.FileStatus{}, err
	}
	if fs.IsDirectory {
		return nil, fs, fmt.Errorf("tail %q failed: %w", path, file_service.ErrNotAFile)
	}

	offset := fs.Size - size
	if offset < 0 {
		offset = 0
	}
	data, err := s.client.ReadRange(ctx, path, offset, fs.Size-offset)
	if err != nil {
		return nil, fs, err
	}
	return data, fs, nil
}

// Download streams remotePath into localPath via a temporary file that is only
// renamed into place once the byte count matches the remote size.
func (s *SimpleFileService) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	fs, err := s.client.GetFileStatus(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	if fs.IsDirectory {
		return 0, fmt.Errorf("download %q failed: %w", remotePath, file_service.ErrNotAFile)
	}

	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		localPath = filepath.Join(localPath, fs.Name)
	}

	rc, err := s.client.Open(ctx, remotePath, 0, 0)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("download %q failed: %w", remotePath, err)
	}
	defer os.Remove(tmp.Name())

	n, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if copyErr != nil {
		return n, fmt.Errorf("download %q failed: %w: %w", remotePath, protocol_client.ErrTransport, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("download %q failed: %w", remotePath, closeErr)
	}
	if n != fs.Size {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Download length mismatch",
			Metadata: map[string]any{"path": remotePath, "expected": fs.Size, "received": n},
		})
		return n, fmt.Errorf("download %q failed: %w: got %d of %d bytes", remotePath, file_service.ErrDownloadIncomplete, n, fs.Size)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return n, fmt.Errorf("download %q failed: %w", remotePath, err)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Download completed",
		Metadata: map[string]any{"path": remotePath, "local": localPath, "bytes": humanize.IBytes(uint64(n))},
	})
	return n, nil
}

func (s *SimpleFileService) Upload(ctx context.Context, req upload_service.UploadRequest) (*upload_service.UploadJobResult, error) {
	return s.uploader.Upload(ctx, req)
}

func (s *SimpleFileService) Mkdir(ctx context.Context, path string) error {
	ok, err := s.client.Mkdirs(ctx, path)
	s.invalidate(path, false)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mkdir %q failed: %w", path, file_service.ErrMkdirRefused)
	}
	return nil
}

func (s *SimpleFileService) Delete(ctx context.Context, path string, recursive bool) error {
	ok, err := s.client.Delete(ctx, path, recursive)
	s.invalidate(path, true)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %q failed: %w", path, file_service.ErrDeleteRefused)
	}
	return nil
}

// invalidate drops path and its parent; tree also drops everything below path.
func (s *SimpleFileService) invalidate(path string, tree bool) {
	p := file_status.NormalizePath(path)
	if tree {
		s.cache.InvalidateTree(p)
	} else {
		s.cache.Invalidate(p)
	}
	s.cache.Invalidate(file_status.ParentPath(p))
}

func (s *SimpleFileService) Refresh(ctx context.Context) (map[string]string, error) {
	s.cache.Clear()
	if s.addresses == nil {
		return nil, nil
	}
	return s.addresses.Refresh(ctx, s.client.LiveNodesURL())
}

var _ file_service.FileService = (*SimpleFileService)(nil)
