package sync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadSyncerSwapsFileForPointer(t *testing.T) {
	target := t.TempDir()
	local := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(local, []byte("movie bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	job := testJob(target)
	drive := newFakeDrive()
	writer := NewPointerWriter(job, nil, testLogger(t))

	node, err := NewUploadSyncer(job, drive, writer, testLogger(t)).Sync(local, "42", "Media/Movies")
	if err != nil {
		t.Fatal(err)
	}

	if node.Path != "Media/Movies/film.mkv" {
		t.Errorf("node path = %q, want Media/Movies/film.mkv", node.Path)
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Error("local original should be removed after confirmed upload")
	}

	pointer := filepath.Join(target, "Media", "Movies", "film.strm")
	if _, err := os.Stat(pointer); err != nil {
		t.Errorf("pointer not written: %v", err)
	}
}

func TestUploadSyncerFailureLeavesLocalFile(t *testing.T) {
	target := t.TempDir()
	local := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(local, []byte("movie bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	job := testJob(target)
	drive := newFakeDrive()
	drive.uploadErr = errors.New("slice rejected")
	writer := NewPointerWriter(job, nil, testLogger(t))

	_, err := NewUploadSyncer(job, drive, writer, testLogger(t)).Sync(local, "42", "Media/Movies")
	if err == nil {
		t.Fatal("expected upload error")
	}

	if _, statErr := os.Stat(local); statErr != nil {
		t.Error("failed upload must leave the local file untouched")
	}

	pointer := filepath.Join(target, "Media", "Movies", "film.strm")
	if _, statErr := os.Stat(pointer); !os.IsNotExist(statErr) {
		t.Error("failed upload must not write a pointer")
	}
}
