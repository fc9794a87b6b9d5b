package sync

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lazybark/go-pretty-code/logs"
	"go.uber.org/zap"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/models"
)

func testLogger(t *testing.T) *logs.Logger {
	t.Helper()

	logger, err := logs.Double(filepath.Join(t.TempDir(), "test.log"), false, zap.InfoLevel)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}

	return logger
}

func testJob(targetDir string) config.Job {
	return config.Job{
		ID:                 "main",
		ClientID:           "client-a",
		ClientSecret:       "secret",
		RootFolderID:       "root",
		TargetDir:          targetDir,
		Proxy:              "http://127.0.0.1:1236",
		UseRedirectURL:     true,
		MinFileSize:        100,
		NFO:                true,
		Subtitle:           true,
		Image:              true,
		VideoExtensions:    []string{".mkv", ".mp4"},
		SubtitleExtensions: []string{".srt", ".ass"},
		ImageExtensions:    []string{".jpg", ".png"},
		CacheExpireTime:    300,
		CleanLocal:         true,
	}
}

// fakeDrive is an in-memory cloud drive: a folder tree with configurable
// page size and per-folder failure injection.
type fakeDrive struct {
	clientID string
	names    map[string]string              // folder id -> name
	children map[string][]models.RemoteNode // folder id -> entries in listing order
	pageSize int

	failures  map[string]int // folder id -> listings to fail before succeeding
	listCalls int
	resolved  int
	trashed   []string
	uploadErr error
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		clientID: "client-a",
		names:    map[string]string{"root": "Media"},
		children: make(map[string][]models.RemoteNode),
		failures: make(map[string]int),
	}
}

func (d *fakeDrive) addFolder(parentID, id, name string) {
	d.names[id] = name
	d.children[parentID] = append(d.children[parentID], models.RemoteNode{FileID: id, Name: name, IsFolder: true})
}

func (d *fakeDrive) addFile(parentID, id, name string, size int64) {
	d.children[parentID] = append(d.children[parentID], models.RemoteNode{FileID: id, Name: name, Size: size})
}

func (d *fakeDrive) ClientID() string { return d.clientID }

func (d *fakeDrive) FolderName(folderID string) (string, error) {
	name, ok := d.names[folderID]
	if !ok {
		return "", fmt.Errorf("no such folder %s", folderID)
	}
	return name, nil
}

func (d *fakeDrive) ListFolder(folderID, lastFileID string) (models.Page, error) {
	d.listCalls++

	if d.failures[folderID] > 0 {
		d.failures[folderID]--
		return models.Page{}, fmt.Errorf("listing %s failed", folderID)
	}

	entries := d.children[folderID]
	start := 0
	if lastFileID != "" {
		for i, e := range entries {
			if e.FileID == lastFileID {
				start = i + 1
				break
			}
		}
	}

	end := len(entries)
	if d.pageSize > 0 && start+d.pageSize < end {
		end = start + d.pageSize
	}

	page := models.Page{Entries: append([]models.RemoteNode(nil), entries[start:end]...)}
	if end < len(entries) {
		page.NextFileID = entries[end-1].FileID
	}

	return page, nil
}

func (d *fakeDrive) ResolveDownloadURL(fileID string) (string, error) {
	d.resolved++
	return "https://dl.example.com/" + fileID, nil
}

func (d *fakeDrive) Upload(localPath, folderID string) (models.RemoteNode, error) {
	if d.uploadErr != nil {
		return models.RemoteNode{}, d.uploadErr
	}
	return models.RemoteNode{FileID: "up-1", Name: filepath.Base(localPath), Size: 1}, nil
}

func (d *fakeDrive) Trash(fileID string) error {
	d.trashed = append(d.trashed, fileID)
	return nil
}

func (d *fakeDrive) Heartbeat() error { return nil }

// noSleep makes retry and pacing waits instant in tests
func noSleep(time.Duration) {}
