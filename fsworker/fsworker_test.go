package fsworker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lazybark/go-pretty-code/logs"
	"go.uber.org/zap"

	"github.com/knifezred/123strm/models"
)

func testWorker(t *testing.T) *Fsworker {
	t.Helper()

	logger, err := logs.Double(filepath.Join(t.TempDir(), "test.log"), false, zap.InfoLevel)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}

	return NewWorker(nil, logger, nil)
}

func testClassifier() Classifier {
	return Classifier{
		SubtitleExts: []string{".srt", ".ass"},
		ImageExts:    []string{".jpg", ".png"},
	}
}

func TestClassify(t *testing.T) {
	cls := testClassifier()

	tests := []struct {
		name string
		want models.EntryKind
	}{
		{name: "ep1.strm", want: models.KindPointer},
		{name: "EP1.STRM", want: models.KindPointer},
		{name: "ep1.nfo", want: models.KindNFO},
		{name: "ep1.srt", want: models.KindSubtitle},
		{name: "poster.jpg", want: models.KindImage},
		{name: "ep1.mkv", want: models.KindOther},
		{name: "notes.txt", want: models.KindOther},
	}

	for _, tt := range tests {
		if got := cls.Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScanInventory(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "Media", "Show"), 0755)
	os.WriteFile(filepath.Join(root, "Media", "Show", "ep1.strm"), []byte("url"), 0644)
	os.WriteFile(filepath.Join(root, "Media", "Show", "ep1.srt"), []byte("subs"), 0644)
	os.WriteFile(filepath.Join(root, "Media", "notes.txt"), []byte("mine"), 0644)

	inv, err := testWorker(t).ScanInventory(root, testClassifier())
	if err != nil {
		t.Fatal(err)
	}

	if len(inv.Entries) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(inv.Entries), inv.Entries)
	}

	pointer, ok := inv.Entries["Media/Show/ep1.strm"]
	if !ok {
		t.Fatal("keys must be slash-separated relative paths")
	}
	if pointer.Kind != models.KindPointer {
		t.Errorf("pointer kind = %v", pointer.Kind)
	}
	if inv.Entries["Media/notes.txt"].Kind != models.KindOther {
		t.Errorf("unmanaged file misclassified")
	}
}

func TestScanInventoryMissingRoot(t *testing.T) {
	inv, err := testWorker(t).ScanInventory(filepath.Join(t.TempDir(), "nope"), testClassifier())
	if err != nil {
		t.Fatalf("missing root should not be an error: %v", err)
	}
	if len(inv.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(inv.Entries))
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0755)
	os.MkdirAll(filepath.Join(root, "keep"), 0755)
	os.WriteFile(filepath.Join(root, "keep", "file.strm"), []byte("x"), 0644)

	removed := testWorker(t).PruneEmptyDirs(root)

	if removed != 3 {
		t.Errorf("removed %d dirs, want 3", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("empty chain should be removed bottom-up")
	}
	if _, err := os.Stat(filepath.Join(root, "keep")); err != nil {
		t.Error("non-empty dir must be kept")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root itself must be kept")
	}
}
