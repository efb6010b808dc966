package file_status

import (
	pathpkg "path"
	"strings"
	"time"
)

const (
	TypeFile      = "FILE"
	TypeDirectory = "DIRECTORY"
	TypeSymlink   = "SYMLINK"
)

// FileStatus is one decoded entry of a LISTSTATUS or GETFILESTATUS response.
// Values are never mutated after parsing.
type FileStatus struct {
	Name             string
	Path             string
	Type             string
	Size             int64
	Replication      int
	IsDirectory      bool
	ChildrenNum      int
	BlockSize        int64
	Owner            string
	Group            string
	Permission       string
	ModificationTime time.Time
	AccessTime       time.Time
}

// WithParent returns a copy whose Path is parent joined with the entry name.
// GETFILESTATUS reports an empty pathSuffix, in which case the parent is the path.
func (fs FileStatus) WithParent(parent string) FileStatus {
	parent = NormalizePath(parent)
	if fs.Name == "" {
		fs.Path = parent
		fs.Name = pathpkg.Base(parent)
		return fs
	}
	fs.Path = pathpkg.Join(parent, fs.Name)
	return fs
}

// DirectoryListing is the full, ordered content of one directory as returned
// by a single LISTSTATUS call.
type DirectoryListing struct {
	Path      string
	Entries   []FileStatus
	FetchedAt time.Time
}

// NewDirectoryListing copies entries, filling Path from dir only for entries
// that do not carry one yet.
func NewDirectoryListing(dir string, entries []FileStatus, fetchedAt time.Time) DirectoryListing {
	dir = NormalizePath(dir)
	owned := make([]FileStatus, len(entries))
	for i, e := range entries {
		if e.Path == "" {
			e = e.WithParent(dir)
		}
		owned[i] = e
	}
	return DirectoryListing{Path: dir, Entries: owned, FetchedAt: fetchedAt}
}

// Clone returns a listing that shares no backing array with l.
func (l DirectoryListing) Clone() DirectoryListing {
	entries := make([]FileStatus, len(l.Entries))
	copy(entries, l.Entries)
	l.Entries = entries
	return l
}

func (l DirectoryListing) Directories() []FileStatus {
	var out []FileStatus
	for _, e := range l.Entries {
		if e.IsDirectory {
			out = append(out, e)
		}
	}
	return out
}

func (l DirectoryListing) Files() []FileStatus {
	var out []FileStatus
	for _, e := range l.Entries {
		if !e.IsDirectory {
			out = append(out, e)
		}
	}
	return out
}

func (l DirectoryListing) Lookup(name string) (FileStatus, bool) {
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return FileStatus{}, false
}

// NormalizePath cleans an absolute remote path; "" and "." become "/".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return pathpkg.Clean(p)
}

// ParentPath returns the directory containing p. The parent of "/" is "/".
func ParentPath(p string) string {
	return pathpkg.Dir(NormalizePath(p))
}
