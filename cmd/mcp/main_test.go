package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnishMulay/hdfswindow/internal/file_service"
	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeFiles struct {
	file_service.FileService
	listing    file_status.DirectoryListing
	tail       []byte
	uploadErr  error
	lastUpload upload_service.UploadRequest
}

func (f *fakeFiles) ListDirectory(ctx context.Context, path string) (file_status.DirectoryListing, error) {
	if path != f.listing.Path {
		return file_status.DirectoryListing{}, errors.New("not found")
	}
	return f.listing, nil
}

func (f *fakeFiles) ReadTail(ctx context.Context, path string, size int64) ([]byte, file_status.FileStatus, error) {
	return f.tail, file_status.FileStatus{Path: path, Size: 1000}, nil
}

func (f *fakeFiles) Upload(ctx context.Context, req upload_service.UploadRequest) (*upload_service.UploadJobResult, error) {
	f.lastUpload = req
	if f.uploadErr != nil {
		return &upload_service.UploadJobResult{FailedChunks: []upload_service.ChunkFailure{{Index: 2, Err: f.uploadErr}}}, f.uploadErr
	}
	return &upload_service.UploadJobResult{Success: true, RemotePath: req.TargetDir + "/x", Bytes: 10, ChunkCount: 1}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text
}

func TestHandleList(t *testing.T) {
	files := &fakeFiles{listing: file_status.NewDirectoryListing("/app", []file_status.FileStatus{
		{Name: "logs", IsDirectory: true, Type: file_status.TypeDirectory},
		{Name: "a.txt", Size: 2048, Type: file_status.TypeFile},
	}, file_status.FromMillis(0))}

	res, err := handleList(context.Background(), callRequest(map[string]any{"path": "/app"}), files)
	if err != nil {
		t.Fatalf("handleList() error = %v", err)
	}
	text := resultText(t, res)
	if res.IsError || !strings.Contains(text, "- logs/") || !strings.Contains(text, "- a.txt (2.0 KiB)") {
		t.Errorf("handleList() = %q", text)
	}

	res, _ = handleList(context.Background(), callRequest(map[string]any{"path": "/missing"}), files)
	if !res.IsError {
		t.Error("listing a missing directory should be a tool error")
	}
}

func TestHandleTailBinary(t *testing.T) {
	files := &fakeFiles{tail: []byte{0xff, 0xfe}}
	res, err := handleTail(context.Background(), callRequest(map[string]any{"path": "/bin", "bytes": float64(2)}), files)
	if err != nil {
		t.Fatalf("handleTail() error = %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, "base64: //4=") {
		t.Errorf("handleTail() = %q", text)
	}
}

func TestHandleUpload(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		uploadErr error
		wantError bool
		wantText  string
	}{
		{
			name:     "success",
			args:     map[string]any{"local_path": "/tmp/x", "target_dir": "/up", "name": "y"},
			wantText: "Uploaded 10 B to /up/x in 1 chunks",
		},
		{
			name:      "missing target",
			args:      map[string]any{"local_path": "/tmp/x"},
			wantError: true,
		},
		{
			name:      "failed chunks reported",
			args:      map[string]any{"local_path": "/tmp/x", "target_dir": "/up"},
			uploadErr: upload_service.ErrPartialUpload,
			wantError: true,
			wantText:  "chunks [2]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &fakeFiles{uploadErr: tt.uploadErr}
			res, err := handleUpload(context.Background(), callRequest(tt.args), files)
			if err != nil {
				t.Fatalf("handleUpload() error = %v", err)
			}
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantError)
			}
			if text := resultText(t, res); !strings.Contains(text, tt.wantText) {
				t.Errorf("handleUpload() = %q, want it to contain %q", text, tt.wantText)
			}
		})
	}
}
