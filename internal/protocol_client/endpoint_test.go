package protocol_client

import (
	"errors"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		namenode string
		wantBase string
		wantErr  bool
	}{
		{name: "bare host", namenode: "nn1", wantBase: "http://nn1:50070"},
		{name: "host and port", namenode: "nn1:9870", wantBase: "http://nn1:9870"},
		{name: "http url", namenode: "http://nn1:9870/", wantBase: "http://nn1:9870"},
		{name: "https url", namenode: "https://nn1:50470", wantBase: "https://nn1:50470"},
		{name: "hdfs url keeps management port", namenode: "hdfs://nn1:8020", wantBase: "http://nn1:50070"},
		{name: "empty", namenode: "", wantErr: true},
		{name: "bad port", namenode: "nn1:abc", wantErr: true},
		{name: "unknown scheme", namenode: "ftp://nn1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.namenode, 0, "", DefaultUser)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEndpoint(%q) error = %v, wantErr %v", tt.namenode, err, tt.wantErr)
			}
			if err == nil && ep.BaseURL() != tt.wantBase {
				t.Errorf("BaseURL() = %q, want %q", ep.BaseURL(), tt.wantBase)
			}
		})
	}
}

func TestEndpoint_BuildURL(t *testing.T) {
	ep, err := ParseEndpoint("nn1", 50070, "/webhdfs/v1", "hadoop")
	if err != nil {
		t.Fatalf("ParseEndpoint() error = %v", err)
	}

	tests := []struct {
		name    string
		locator string
		op      string
		params  []Param
		want    string
		wantErr error
	}{
		{
			name:    "plain path",
			locator: "/data/a.txt",
			op:      OpGetFileStatus,
			want:    "http://nn1:50070/webhdfs/v1/data/a.txt?op=GETFILESTATUS&user.name=hadoop",
		},
		{
			name:    "root",
			locator: "/",
			op:      OpListStatus,
			want:    "http://nn1:50070/webhdfs/v1/?op=LISTSTATUS&user.name=hadoop",
		},
		{
			name:    "extra arguments keep their order",
			locator: "/data/big.bin",
			op:      OpCreate,
			params:  []Param{{Key: "overwrite", Value: "true"}, {Key: "noredirect", Value: "true"}},
			want:    "http://nn1:50070/webhdfs/v1/data/big.bin?op=CREATE&user.name=hadoop&overwrite=true&noredirect=true",
		},
		{
			name:    "hdfs locator uses management port",
			locator: "hdfs://nn2:8020/logs/x",
			op:      OpOpen,
			params:  []Param{{Key: "offset", Value: "0"}, {Key: "length", Value: "10"}},
			want:    "http://nn2:50070/webhdfs/v1/logs/x?op=OPEN&user.name=hadoop&offset=0&length=10",
		},
		{
			name:    "http locator keeps its port",
			locator: "http://nn3:9870/logs/x",
			op:      OpDelete,
			want:    "http://nn3:9870/webhdfs/v1/logs/x?op=DELETE&user.name=hadoop",
		},
		{
			name:    "path is escaped",
			locator: "/my dir/a#b",
			op:      OpGetFileStatus,
			want:    "http://nn1:50070/webhdfs/v1/my%20dir/a%23b?op=GETFILESTATUS&user.name=hadoop",
		},
		{
			name:    "values are escaped",
			locator: "/d/f",
			op:      OpConcat,
			params:  []Param{{Key: "sources", Value: "/d/f_p_00000,/d/f_p_00001"}},
			want:    "http://nn1:50070/webhdfs/v1/d/f?op=CONCAT&user.name=hadoop&sources=%2Fd%2Ff_p_00000%2C%2Fd%2Ff_p_00001",
		},
		{name: "relative path", locator: "data/a.txt", op: OpOpen, wantErr: ErrInvalidPath},
		{name: "empty path", locator: "", op: OpOpen, wantErr: ErrInvalidPath},
		{name: "hdfs locator without host", locator: "hdfs:///x", op: OpOpen, wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ep.BuildURL(tt.locator, tt.op, tt.params...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuildURL(%q) error = %v, want %v", tt.locator, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildURL(%q) unexpected error: %v", tt.locator, err)
			}
			if got != tt.want {
				t.Errorf("BuildURL(%q)\n got %s\nwant %s", tt.locator, got, tt.want)
			}
		})
	}
}

func TestRemoteError(t *testing.T) {
	notFound := &RemoteError{Op: OpGetFileStatus, Path: "/x", StatusCode: 404, Exception: "FileNotFoundException", Message: "File does not exist: /x"}
	if !errors.Is(notFound, ErrNotFound) || !errors.Is(notFound, ErrProtocol) {
		t.Errorf("404 RemoteError should match ErrNotFound and ErrProtocol")
	}
	if errors.Is(notFound, ErrTransport) {
		t.Errorf("RemoteError must not match ErrTransport")
	}

	denied := &RemoteError{Op: OpMkdirs, Path: "/x", StatusCode: 403, Exception: "AccessControlException"}
	if errors.Is(denied, ErrNotFound) {
		t.Errorf("403 RemoteError should not match ErrNotFound")
	}
	if denied.Retryable() {
		t.Errorf("403 should not be retryable")
	}
	if want := `MKDIRS "/x" failed: HTTP 403 AccessControlException`; denied.Error() != want {
		t.Errorf("Error() = %q, want %q", denied.Error(), want)
	}

	var re *RemoteError
	wrapped := TransportError(OpOpen, "/x", errors.New("connection refused"))
	if errors.As(wrapped, &re) || !errors.Is(wrapped, ErrTransport) {
		t.Errorf("TransportError() = %v", wrapped)
	}
}
