package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazybark/go-pretty-code/logs"
	"go.uber.org/zap"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/db"
	"github.com/knifezred/123strm/fsworker"
	"github.com/knifezred/123strm/models"
	syncer "github.com/knifezred/123strm/sync"
)

// stubDrive satisfies the drive contract with canned answers
type stubDrive struct{}

func (stubDrive) ClientID() string                  { return "acc-1" }
func (stubDrive) FolderName(string) (string, error) { return "Media", nil }
func (stubDrive) Heartbeat() error                  { return nil }
func (stubDrive) Trash(string) error                { return nil }
func (stubDrive) ListFolder(folderID, lastFileID string) (models.Page, error) {
	return models.Page{}, nil
}
func (stubDrive) ResolveDownloadURL(fileID string) (string, error) {
	return "https://dl.example.com/" + fileID, nil
}
func (stubDrive) Upload(localPath, folderID string) (models.RemoteNode, error) {
	return models.RemoteNode{FileID: "up-1", Name: filepath.Base(localPath)}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	logger, err := logs.Double(filepath.Join(t.TempDir(), "test.log"), false, zap.InfoLevel)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}

	sqlite := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	if err := db.Init(sqlite); err != nil {
		t.Fatal(err)
	}

	jobs := []config.Job{{
		ID:              "main",
		ClientID:        "acc-1",
		ClientSecret:    "secret",
		RootFolderID:    "root",
		TargetDir:       t.TempDir(),
		Proxy:           "http://127.0.0.1:1236",
		UseRedirectURL:  true,
		CacheExpireTime: 300,
	}}

	fw := fsworker.NewWorker(sqlite, logger, nil)
	orc := syncer.NewOrchestrator(jobs, sqlite, fw, logger, func(config.Job) syncer.Drive {
		return stubDrive{}
	})

	return NewServer(orc, sqlite, logger)
}

func TestGetFileURLRedirects(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/get_file_url/f1/main", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://dl.example.com/f1" {
		t.Errorf("location = %q", loc)
	}
}

func TestGetFileURLUnknownJob(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/get_file_url/f1/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListJobsHidesCredentials(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("job listing must not leak credentials")
	}

	var out []jobDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "main" {
		t.Errorf("jobs = %+v", out)
	}
}

func TestJobRuns(t *testing.T) {
	srv := testServer(t)

	srv.db.Create(&models.JobRun{CycleID: "c1", JobID: "main", Created: 3})

	req := httptest.NewRequest("GET", "/jobs/main/runs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var runs []models.JobRun
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Created != 3 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestJobRunsUnknownJob(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/jobs/nope/runs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestScrapeUnknownJob(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/scrape", strings.NewReader(`{"job_id":"nope"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestScrapeRunsJob(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/scrape", strings.NewReader(`{"job_id":"main"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result syncer.JobResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.JobID != "main" {
		t.Errorf("result = %+v", result)
	}
}

func TestGetConfigMasksSecretsWithoutTouchingLiveConfig(t *testing.T) {
	srv := testServer(t)

	secret := "job-secret"
	saved := config.Current
	config.Current = config.Config{
		ClientSecret: "global-secret",
		JobList:      []config.JobOverride{{ID: "tv", ClientSecret: &secret}},
	}
	t.Cleanup(func() { config.Current = saved })

	req := httptest.NewRequest("GET", "/config", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "global-secret") || strings.Contains(body, "job-secret") {
		t.Error("config response must not leak secrets")
	}
	if !strings.Contains(body, "******") {
		t.Error("secrets should be masked, not omitted")
	}

	if config.Current.ClientSecret != "global-secret" {
		t.Errorf("live global secret changed to %q", config.Current.ClientSecret)
	}
	if got := *config.Current.JobList[0].ClientSecret; got != "job-secret" {
		t.Errorf("live job secret changed to %q", got)
	}
}

func TestUploadRejectsMissingFields(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/upload", strings.NewReader(`{"job_id":"main"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
