package file_status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDecode          = errors.New("malformed status response")
	ErrMissingLocation = errors.New("response has no Location")
)

type wireFileStatus struct {
	AccessTime       *int64  `json:"accessTime"`
	BlockSize        int64   `json:"blockSize"`
	ChildrenNum      int     `json:"childrenNum"`
	Group            string  `json:"group"`
	Length           int64   `json:"length"`
	ModificationTime *int64  `json:"modificationTime"`
	Owner            string  `json:"owner"`
	PathSuffix       string  `json:"pathSuffix"`
	Permission       string  `json:"permission"`
	Replication      int     `json:"replication"`
	Type             *string `json:"type"`
}

type listStatusResponse struct {
	FileStatuses *struct {
		FileStatus *[]wireFileStatus `json:"FileStatus"`
	} `json:"FileStatuses"`
}

type fileStatusResponse struct {
	FileStatus *wireFileStatus `json:"FileStatus"`
}

// RemoteException is the error body WebHDFS returns with non-2xx responses.
type RemoteException struct {
	Exception     string `json:"exception"`
	JavaClassName string `json:"javaClassName"`
	Message       string `json:"message"`
}

// ParseListing decodes a LISTSTATUS body. Entry paths are relative until the
// caller attaches a parent (see NewDirectoryListing).
func ParseListing(body []byte) ([]FileStatus, error) {
	var resp listStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if resp.FileStatuses == nil || resp.FileStatuses.FileStatus == nil {
		return nil, fmt.Errorf("%w: missing FileStatuses.FileStatus", ErrDecode)
	}

	wire := *resp.FileStatuses.FileStatus
	out := make([]FileStatus, 0, len(wire))
	for i, w := range wire {
		fs, err := w.toFileStatus()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, fs)
	}
	return out, nil
}

// ParseSingleStatus decodes a GETFILESTATUS body.
func ParseSingleStatus(body []byte) (FileStatus, error) {
	var resp fileStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return FileStatus{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if resp.FileStatus == nil {
		return FileStatus{}, fmt.Errorf("%w: missing FileStatus", ErrDecode)
	}
	return resp.FileStatus.toFileStatus()
}

// ParseRemoteException extracts the RemoteException object, if the body has one.
func ParseRemoteException(body []byte) (RemoteException, bool) {
	var resp struct {
		RemoteException *RemoteException `json:"RemoteException"`
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return RemoteException{}, false
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.RemoteException == nil {
		return RemoteException{}, false
	}
	return *resp.RemoteException, true
}

// ParseBoolean decodes the {"boolean": true|false} body of MKDIRS and DELETE.
func ParseBoolean(body []byte) (bool, error) {
	var resp struct {
		Boolean *bool `json:"boolean"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if resp.Boolean == nil {
		return false, fmt.Errorf("%w: missing boolean", ErrDecode)
	}
	return *resp.Boolean, nil
}

// ParseLocation decodes the {"Location": "..."} body a gateway returns to a
// noredirect=true CREATE or OPEN.
func ParseLocation(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrMissingLocation
	}
	var resp struct {
		Location string `json:"Location"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if resp.Location == "" {
		return "", ErrMissingLocation
	}
	return resp.Location, nil
}

func (w wireFileStatus) toFileStatus() (FileStatus, error) {
	if w.Type == nil {
		return FileStatus{}, fmt.Errorf("%w: missing type", ErrDecode)
	}
	fs := FileStatus{
		Name:        w.PathSuffix,
		Type:        *w.Type,
		Size:        w.Length,
		Replication: w.Replication,
		IsDirectory: *w.Type == TypeDirectory,
		ChildrenNum: w.ChildrenNum,
		BlockSize:   w.BlockSize,
		Owner:       w.Owner,
		Group:       w.Group,
		Permission:  w.Permission,
	}
	if w.ModificationTime != nil {
		fs.ModificationTime = FromMillis(*w.ModificationTime)
	}
	if w.AccessTime != nil {
		fs.AccessTime = FromMillis(*w.AccessTime)
	}
	return fs, nil
}

// FromMillis converts a gateway timestamp (ms since the epoch) to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
