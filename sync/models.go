package sync

import (
	"time"

	"github.com/knifezred/123strm/models"
)

type (
	// Lister is the read side of the cloud drive used by the walker
	Lister interface {
		FolderName(folderID string) (string, error)
		ListFolder(folderID, lastFileID string) (models.Page, error)
	}

	// Resolver turns a remote file id into a direct download URL
	Resolver interface {
		ResolveDownloadURL(fileID string) (string, error)
	}

	// Uploader is the write side of the cloud drive
	Uploader interface {
		Upload(localPath, folderID string) (models.RemoteNode, error)
	}

	// Drive is the full cloud-drive contract the orchestrator wires per account
	Drive interface {
		Lister
		Resolver
		Uploader
		Trash(fileID string) error
		Heartbeat() error
		ClientID() string
	}

	// Snapshot is the remote state of one job's subtree(s) collected by a walk.
	// Files keep listing order. Complete is false when any folder listing
	// failed after retries; a plan built from an incomplete snapshot never
	// deletes anything.
	Snapshot struct {
		Files    []models.RemoteNode
		Complete bool
		Failures []string
	}

	// PointerAction materializes one strm file
	PointerAction struct {
		File      models.RemoteNode
		LocalPath string // relative to the job's target dir, slash-separated
	}

	// AssetAction downloads one sidecar file
	AssetAction struct {
		File      models.RemoteNode
		LocalPath string
		Kind      models.EntryKind
	}

	// Plan is the ordered reconciliation result for one job run.
	// Execution order is fixed: pointers, assets, deletes.
	Plan struct {
		Pointers     []PointerAction
		Assets       []AssetAction
		Deletes      []string
		Skipped      int
		WalkComplete bool
		// Index maps every mirrored local path to its remote file id
		Index map[string]string
	}

	// JobResult is the per-job outcome of one cycle, surfaced to the HTTP layer
	JobResult struct {
		JobID      string
		CycleID    string
		Created    int
		Assets     int
		Skipped    int
		Deleted    int
		Failed     int
		Degraded   bool
		Errors     []string
		StartedAt  time.Time
		FinishedAt time.Time
	}
)

// fail records one failed action on the result
func (r *JobResult) fail(msg string) {
	r.Failed++
	r.Degraded = true
	r.Errors = append(r.Errors, msg)
}
