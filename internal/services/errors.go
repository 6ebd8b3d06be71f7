package services

import (
	"errors"

	"ifc-service/internal/repository"
)

var (
	// ErrInvalidInput is returned for malformed ids, names or request bodies.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType is returned for uploads that are not IFC models.
	ErrUnsupportedType = errors.New("invalid file type, only .ifc files are allowed")

	// ErrTooLarge is returned for uploads above the configured limit.
	ErrTooLarge = errors.New("upload exceeds size limit")

	// ErrAlreadyExists is returned when an upload reuses a registered filename.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrBusy is returned while another conversion or rename holds the stem.
	ErrBusy = errors.New("a conversion for this file is in progress")

	// ErrNotConverted is returned when a tagged mesh is required but missing.
	ErrNotConverted = errors.New("file has not been converted")

	// ErrMissingOnDisk is returned when a record exists but its artifact does not.
	ErrMissingOnDisk = errors.New("file not found on disk")

	// ErrNotFound aliases the repository sentinel so handlers need one import.
	ErrNotFound = repository.ErrNotFound
)
