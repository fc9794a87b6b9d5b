package sync

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/lazybark/go-pretty-code/logs"

	"github.com/knifezred/123strm/models"
)

// Walker enumerates a remote subtree depth-first over an explicit worklist.
// It holds no cross-run state; every Walk starts fresh.
type Walker struct {
	lister      Lister
	logger      *logs.Logger
	maxAttempts int
	retryWait   time.Duration

	sleep func(time.Duration)
}

// folderFrame is one pending folder on the traversal stack
type folderFrame struct {
	id   string
	path string
}

// NewWalker creates a walker with the provider-friendly retry policy:
// three attempts per listing, five seconds apart.
func NewWalker(lister Lister, logger *logs.Logger) *Walker {
	return &Walker{
		lister:      lister,
		logger:      logger,
		maxAttempts: 3,
		retryWait:   5 * time.Second,
		sleep:       time.Sleep,
	}
}

// Walk collects the remote snapshot under one or more roots (comma-separated
// folder ids). A failed subtree degrades the snapshot instead of aborting it:
// siblings keep walking, Complete drops to false and the failure is recorded.
func (w *Walker) Walk(rootFolderID string) (snap *Snapshot) {
	snap = &Snapshot{Complete: true}

	for _, rootID := range strings.Split(rootFolderID, ",") {
		rootID = strings.TrimSpace(rootID)
		if rootID == "" {
			continue
		}

		rootName, err := w.folderName(rootID)
		if err != nil {
			snap.Complete = false
			snap.Failures = append(snap.Failures, fmt.Sprintf("root %s: %v", rootID, err))
			w.logger.Error(fmt.Sprintf("Resolving root folder %s failed: ", rootID), err)
			continue
		}

		w.walkSubtree(rootID, rootName, snap)
	}

	return
}

// WalkAt collects the snapshot of one subtree mirrored under parentPath, so
// a scoped walk places files exactly where a full walk of the job's root
// would put them. Pointer paths stay a pure function of the remote path.
func (w *Walker) WalkAt(folderID, parentPath string) (snap *Snapshot) {
	snap = &Snapshot{Complete: true}

	name, err := w.folderName(folderID)
	if err != nil {
		snap.Complete = false
		snap.Failures = append(snap.Failures, fmt.Sprintf("folder %s: %v", folderID, err))
		w.logger.Error(fmt.Sprintf("Resolving folder %s failed: ", folderID), err)
		return
	}

	w.walkSubtree(folderID, path.Join(parentPath, name), snap)

	return
}

// walkSubtree walks one root with an explicit stack. All pages of a folder
// are consumed before any of its subfolders is entered; subfolders are pushed
// in reverse so traversal follows the listing order deterministically.
func (w *Walker) walkSubtree(rootID, rootPath string, snap *Snapshot) {
	stack := []folderFrame{{id: rootID, path: rootPath}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := w.listAll(frame.id)
		if err != nil {
			snap.Complete = false
			snap.Failures = append(snap.Failures, fmt.Sprintf("folder %s (%s): %v", frame.path, frame.id, err))
			w.logger.Error(fmt.Sprintf("Listing folder %s failed: ", frame.path), err)
			continue
		}

		var subdirs []folderFrame
		for _, entry := range entries {
			entry.Path = path.Join(frame.path, entry.Name)
			if entry.IsFolder {
				subdirs = append(subdirs, folderFrame{id: entry.FileID, path: entry.Path})
			} else {
				snap.Files = append(snap.Files, entry)
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
}

// listAll drains every page of one folder's listing
func (w *Walker) listAll(folderID string) (entries []models.RemoteNode, err error) {
	lastFileID := ""
	for {
		page, err := w.listPage(folderID, lastFileID)
		if err != nil {
			return nil, err
		}

		entries = append(entries, page.Entries...)
		if page.NextFileID == "" {
			break
		}
		lastFileID = page.NextFileID
	}

	return entries, nil
}

// listPage fetches one page with a bounded attempt budget
func (w *Walker) listPage(folderID, lastFileID string) (page models.Page, err error) {
	for attempt := 1; ; attempt++ {
		page, err = w.lister.ListFolder(folderID, lastFileID)
		if err == nil {
			return
		}
		if attempt >= w.maxAttempts {
			return
		}

		w.logger.Warn(fmt.Sprintf("Listing %s failed (attempt %d): %v, retrying", folderID, attempt, err))
		w.sleep(w.retryWait)
	}
}

// folderName resolves a folder name with the same retry policy as listings
func (w *Walker) folderName(folderID string) (name string, err error) {
	for attempt := 1; ; attempt++ {
		name, err = w.lister.FolderName(folderID)
		if err == nil {
			return
		}
		if attempt >= w.maxAttempts {
			return
		}

		w.sleep(w.retryWait)
	}
}
