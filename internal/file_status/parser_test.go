package file_status

import (
	"errors"
	"testing"
	"time"
)

func TestParseListing(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []FileStatus
		wantErr error
	}{
		{
			name: "single directory",
			body: `{"FileStatuses":{"FileStatus":[{"type":"DIRECTORY","pathSuffix":"app","childrenNum":1,"replication":0}]}}`,
			want: []FileStatus{{Name: "app", Type: TypeDirectory, IsDirectory: true, ChildrenNum: 1}},
		},
		{
			name: "file with sizes and owner",
			body: `{"FileStatuses":{"FileStatus":[{"type":"FILE","pathSuffix":"a.log","length":1024,"replication":3,"blockSize":134217728,"owner":"hadoop","group":"supergroup","permission":"644"}]}}`,
			want: []FileStatus{{
				Name: "a.log", Type: TypeFile, Size: 1024, Replication: 3, BlockSize: 134217728,
				Owner: "hadoop", Group: "supergroup", Permission: "644",
			}},
		},
		{
			name: "empty directory",
			body: `{"FileStatuses":{"FileStatus":[]}}`,
			want: []FileStatus{},
		},
		{
			name:    "missing FileStatuses",
			body:    `{"boolean":true}`,
			wantErr: ErrDecode,
		},
		{
			name:    "entry without type",
			body:    `{"FileStatuses":{"FileStatus":[{"pathSuffix":"x"}]}}`,
			wantErr: ErrDecode,
		},
		{
			name:    "not json",
			body:    `<html>gateway error</html>`,
			wantErr: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseListing([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseListing() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseListing() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseListing() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseListing_MillisecondTimestamps(t *testing.T) {
	body := `{"FileStatuses":{"FileStatus":[{"type":"FILE","pathSuffix":"f","modificationTime":1700000000123,"accessTime":1700000000999}]}}`
	got, err := ParseListing([]byte(body))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	want := time.Date(2023, time.November, 14, 22, 13, 20, 123*int(time.Millisecond), time.UTC)
	if !got[0].ModificationTime.Equal(want) {
		t.Errorf("ModificationTime = %v, want %v", got[0].ModificationTime, want)
	}
	if got[0].AccessTime.Nanosecond() != 999*int(time.Millisecond) {
		t.Errorf("AccessTime lost millisecond precision: %v", got[0].AccessTime)
	}
}

func TestParseSingleStatus(t *testing.T) {
	body := `{"FileStatus":{"type":"FILE","pathSuffix":"","length":42,"replication":1}}`
	got, err := ParseSingleStatus([]byte(body))
	if err != nil {
		t.Fatalf("ParseSingleStatus() error = %v", err)
	}
	if got.Size != 42 || got.IsDirectory {
		t.Errorf("ParseSingleStatus() = %+v", got)
	}

	got = got.WithParent("/data/logs/app.log")
	if got.Path != "/data/logs/app.log" || got.Name != "app.log" {
		t.Errorf("WithParent() = path %q name %q", got.Path, got.Name)
	}

	if _, err := ParseSingleStatus([]byte(`{}`)); !errors.Is(err, ErrDecode) {
		t.Errorf("ParseSingleStatus({}) error = %v, want ErrDecode", err)
	}
}

func TestParseRemoteException(t *testing.T) {
	body := `{"RemoteException":{"exception":"FileNotFoundException","javaClassName":"java.io.FileNotFoundException","message":"File does not exist: /nope"}}`
	re, ok := ParseRemoteException([]byte(body))
	if !ok {
		t.Fatal("ParseRemoteException() found nothing")
	}
	if re.Exception != "FileNotFoundException" || re.Message != "File does not exist: /nope" {
		t.Errorf("ParseRemoteException() = %+v", re)
	}

	for _, body := range []string{"", "   ", "not json", `{"boolean":false}`} {
		if _, ok := ParseRemoteException([]byte(body)); ok {
			t.Errorf("ParseRemoteException(%q) reported an exception", body)
		}
	}
}

func TestParseBoolean(t *testing.T) {
	tests := []struct {
		body    string
		want    bool
		wantErr bool
	}{
		{body: `{"boolean":true}`, want: true},
		{body: `{"boolean":false}`, want: false},
		{body: `{}`, wantErr: true},
		{body: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := ParseBoolean([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBoolean() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBoolean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation([]byte(`{"Location":"http://dn1:50075/webhdfs/v1/f?op=CREATE"}`))
	if err != nil || loc != "http://dn1:50075/webhdfs/v1/f?op=CREATE" {
		t.Errorf("ParseLocation() = %q, %v", loc, err)
	}
	if _, err := ParseLocation(nil); !errors.Is(err, ErrMissingLocation) {
		t.Errorf("ParseLocation(nil) error = %v, want ErrMissingLocation", err)
	}
	if _, err := ParseLocation([]byte(`{}`)); !errors.Is(err, ErrMissingLocation) {
		t.Errorf("ParseLocation({}) error = %v, want ErrMissingLocation", err)
	}
}
