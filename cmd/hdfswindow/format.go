package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/dustin/go-humanize"
)

func formatEntry(fs file_status.FileStatus) string {
	name := fs.Name
	size := humanize.IBytes(uint64(fs.Size))
	if fs.IsDirectory {
		name += "/"
		size = "-"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s", permissionString(fs), fs.Owner, fs.Group, size, formatTime(fs.ModificationTime), name)
}

func describe(fs file_status.FileStatus) [][2]string {
	return [][2]string{
		{"Path", fs.Path},
		{"Type", fs.Type},
		{"Size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(fs.Size)), fs.Size)},
		{"Replication", strconv.Itoa(fs.Replication)},
		{"Block size", humanize.IBytes(uint64(fs.BlockSize))},
		{"Owner", fs.Owner + ":" + fs.Group},
		{"Permission", permissionString(fs)},
		{"Modified", formatTime(fs.ModificationTime)},
		{"Accessed", formatTime(fs.AccessTime)},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04") + " (" + humanize.Time(t) + ")"
}

// permissionString renders an octal permission such as "755" as rwxr-xr-x.
func permissionString(fs file_status.FileStatus) string {
	prefix := "-"
	if fs.IsDirectory {
		prefix = "d"
	}
	mode, err := strconv.ParseUint(fs.Permission, 8, 32)
	if err != nil || fs.Permission == "" {
		return prefix + "?????????"
	}
	const bits = "rwxrwxrwx"
	out := []byte(prefix + "---------")
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			out[i+1] = bits[i]
		}
	}
	return string(out)
}
