package domain

import "time"

// FileDescriptor describes a filesystem entry eligible for loading.
// It describes the entry itself, not a loaded table.
type FileDescriptor struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified"`
	Extension  string    `json:"extension"`
}
