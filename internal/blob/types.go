// Package blob re-exports the blob abstractions and selects a backend for
// document snapshot archives.
package blob

import (
	"sbomcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrExists is returned by Put when the key is taken.
	ErrExists = core.ErrExists
	// ErrNotFound is returned when a key is missing.
	ErrNotFound = core.ErrNotFound
)
