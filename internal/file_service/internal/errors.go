package internal

import "errors"

var (
	// Path errors
	ErrNotAFile     = errors.New("path is a directory")
	ErrNotDirectory = errors.New("path is not a directory")

	// Mutation errors
	ErrMkdirRefused  = errors.New("gateway refused to create directory")
	ErrDeleteRefused = errors.New("gateway refused to delete path")

	// Transfer errors
	ErrDownloadIncomplete = errors.New("downloaded length does not match file size")
)
