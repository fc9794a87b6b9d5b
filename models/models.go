package models

import "time"

type (

	// RemoteNode represents one entry of the cloud drive tree during a walk.
	// Path is the mirrored relative path built by the walker, not an API field.
	RemoteNode struct {
		FileID   string
		Name     string
		Path     string
		Size     int64
		IsFolder bool
	}

	// Page is one page of a folder listing. NextFileID carries the pagination
	// cursor; empty means the listing is exhausted.
	Page struct {
		Entries    []RemoteNode
		NextFileID string
	}

	// LocalEntry represents one file found under a job's target dir
	LocalEntry struct {
		Path    string // relative to the job's target dir
		Kind    EntryKind
		Size    int64
		ModTime time.Time
	}

	// EntryKind classifies a local file by its role in the mirror
	EntryKind int

	// PathIndex maps a generated local file back to its cloud counterpart.
	// Rewritten after every complete walk; consumed by the delete watcher.
	PathIndex struct {
		ID        uint   `gorm:"primaryKey"`
		JobID     string `gorm:"index;uniqueIndex:job_path"`
		Path      string `gorm:"uniqueIndex:job_path"`
		FileID    string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// JobRun is the stored summary of one job execution within a cycle
	JobRun struct {
		ID         uint   `gorm:"primaryKey"`
		CycleID    string `gorm:"index"`
		JobID      string `gorm:"index"`
		Created    int
		Assets     int
		Skipped    int
		Deleted    int
		Failed     int
		Degraded   bool
		WalkErrors string
		StartedAt  time.Time
		FinishedAt time.Time
	}
)

const (
	KindOther EntryKind = iota
	KindPointer
	KindSubtitle
	KindImage
	KindNFO
)

// Managed reports whether the entry belongs to the mirror output and may
// therefore be cleaned up. KindOther files are never touched.
func (k EntryKind) Managed() bool {
	return k == KindPointer || k == KindSubtitle || k == KindImage || k == KindNFO
}

// String returns human-readable kind name
func (k EntryKind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindSubtitle:
		return "subtitle"
	case KindImage:
		return "image"
	case KindNFO:
		return "nfo"
	}
	return "other"
}
