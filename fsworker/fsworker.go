package fsworker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/lazybark/go-pretty-code/logs"
	"gorm.io/gorm"

	"github.com/knifezred/123strm/models"
)

type (
	// Fsworker is the local-filesystem side of the mirror: it scans job
	// output trees, prunes leftovers and watches for manual deletions.
	Fsworker struct {
		DB      *gorm.DB
		Logger  *logs.Logger
		Watcher *fsnotify.Watcher
	}

	// Classifier assigns a mirror role to a file name by its extension
	Classifier struct {
		SubtitleExts []string
		ImageExts    []string
	}

	// Inventory is the scanned state of one job's target dir. Keys are
	// slash-separated paths relative to Root.
	Inventory struct {
		Root    string
		Entries map[string]models.LocalEntry
	}

	// RemoteTrasher moves a remote file to the provider trash
	RemoteTrasher interface {
		Trash(fileID string) error
	}
)

// NewWorker creates a filesystem worker. Watcher may be nil when delete
// watching is disabled.
func NewWorker(db *gorm.DB, logger *logs.Logger, watcher *fsnotify.Watcher) *Fsworker {
	fw := new(Fsworker)
	fw.DB = db
	fw.Logger = logger
	fw.Watcher = watcher

	return fw
}

// Classify maps a file name to its mirror role
func (c Classifier) Classify(name string) models.EntryKind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".strm":
		return models.KindPointer
	case ext == ".nfo":
		return models.KindNFO
	case extIn(ext, c.SubtitleExts):
		return models.KindSubtitle
	case extIn(ext, c.ImageExts):
		return models.KindImage
	}

	return models.KindOther
}

func extIn(ext string, exts []string) bool {
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// ScanInventory walks a job's target dir and classifies every file.
// A missing root is an empty inventory, not an error: first runs start
// with nothing on disk.
func (f *Fsworker) ScanInventory(root string, cls Classifier) (inv *Inventory, err error) {
	inv = &Inventory{Root: root, Entries: make(map[string]models.LocalEntry)}

	if _, statErr := os.Stat(root); os.IsNotExist(statErr) {
		return inv, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		rel = filepath.ToSlash(rel)
		inv.Entries[rel] = models.LocalEntry{
			Path:    rel,
			Kind:    cls.Classify(d.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	return inv, nil
}

// PruneEmptyDirs removes directories left empty after a delete phase,
// deepest first. The root itself is kept.
func (f *Fsworker) PruneEmptyDirs(root string) (removed int) {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	// Children sort after parents, so walk the list backwards
	sort.Strings(dirs)
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			removed++
			f.Logger.Info(fmt.Sprintf("Removed empty dir %s", dirs[i]))
		}
	}

	return
}

// WatchTree registers root and all its subdirectories with the watcher
func (f *Fsworker) WatchTree(root string) (err error) {
	if f.Watcher == nil {
		return fmt.Errorf("no watcher configured")
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if err := f.Watcher.Add(path); err != nil {
			f.Logger.Error("FS watcher add failed: ", err)
		}
		return nil
	})
}

// DeleteWatcherRoutine mirrors manual local deletions back to the cloud:
// a removed file that the path index knows about is trashed remotely.
// Unindexed paths are ignored: the watcher never touches files the mirror
// did not create. This is the only path that deletes anything remotely.
func (f *Fsworker) DeleteWatcherRoutine(trasherFor func(jobID string) RemoteTrasher) {
	for {
		select {
		case event, ok := <-f.Watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			var rec models.PathIndex
			err := f.DB.Where("path = ?", filepath.Clean(event.Name)).First(&rec).Error
			if err != nil {
				if err != gorm.ErrRecordNotFound {
					f.Logger.Error("Path index lookup failed: ", err)
				}
				continue
			}

			trasher := trasherFor(rec.JobID)
			if trasher == nil {
				f.Logger.Warn(fmt.Sprintf("No drive for job %s, keeping remote file %s", rec.JobID, rec.FileID))
				continue
			}

			if err := trasher.Trash(rec.FileID); err != nil {
				f.Logger.Error(fmt.Sprintf("Trashing remote file %s failed: ", rec.FileID), err)
				continue
			}

			f.Logger.InfoYellow(fmt.Sprintf("Local delete of %s mirrored to cloud (file %s)", event.Name, rec.FileID))
			f.DB.Delete(&rec)

		case err, ok := <-f.Watcher.Errors:
			if !ok {
				return
			}
			f.Logger.Error("FS watcher error: ", err)
		}
	}
}
