package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/models"
	"github.com/knifezred/123strm/sync"
)

type (
	scrapeRequest struct {
		JobID    string `json:"job_id"`
		FolderID string `json:"folder_id"`
		// ParentPath names the mirrored parent of a scoped folder so its
		// output lands at the same local paths a full run produces
		ParentPath string `json:"parent_path"`
	}

	uploadRequest struct {
		JobID            string `json:"job_id"`
		LocalPath        string `json:"local_path"`
		FolderID         string `json:"folder_id"`
		RemoteParentPath string `json:"remote_parent_path"`
	}

	// jobDTO is the public view of a resolved job, credentials excluded
	jobDTO struct {
		ID             string `json:"id"`
		RootFolderID   string `json:"root_folder_id"`
		TargetDir      string `json:"target_dir"`
		PathPrefix     string `json:"path_prefix,omitempty"`
		UseRedirectURL bool   `json:"use_redirect_url"`
		Overwrite      bool   `json:"overwrite"`
		FlattenMode    bool   `json:"flatten_mode"`
		CleanLocal     bool   `json:"clean_local"`
		MinFileSize    int64  `json:"min_file_size"`
	}
)

// GetFileURL is the playback path: a media player opens a pointer, lands
// here and gets a 302 to a fresh download URL resolved through the job's
// account cache.
func (s *Server) GetFileURL(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	jobID := chi.URLParam(r, "jobID")

	url, err := s.orc.ResolveURL(jobID, fileID)
	if err != nil {
		if errors.Is(err, sync.ErrUnknownJob) {
			http.Error(w, "unknown job", http.StatusNotFound)
			return
		}
		s.logger.Error(fmt.Sprintf("Resolving file %s for job %s failed: ", fileID, jobID), err)
		http.Error(w, "resolve failed", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// ListJobs returns the resolved job list without credentials
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orc.Jobs()
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobDTO{
			ID:             j.ID,
			RootFolderID:   j.RootFolderID,
			TargetDir:      j.TargetDir,
			PathPrefix:     j.PathPrefix,
			UseRedirectURL: j.UseRedirectURL,
			Overwrite:      j.Overwrite,
			FlattenMode:    j.FlattenMode,
			CleanLocal:     j.CleanLocal,
			MinFileSize:    j.MinFileSize,
		})
	}

	writeJSON(w, out)
}

// JobRuns returns the latest stored run summaries for one job
func (s *Server) JobRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.orc.Job(id); !ok {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	var runs []models.JobRun
	err := s.db.Where("job_id = ?", id).Order("id desc").Limit(50).Find(&runs).Error
	if err != nil {
		s.logger.Error("Loading job runs failed: ", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, runs)
}

// Scrape triggers a run. With job_id set it runs that one job, optionally
// scoped to folder_id placed under parent_path; without it, a full cycle.
// A cycle already in flight yields 409: triggers are dropped, never queued.
// The call blocks until the run finishes and returns its summary.
func (s *Server) Scrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if body.JobID == "" {
		results, err := s.orc.RunCycle()
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, results)
		return
	}

	result, err := s.orc.RunJob(body.JobID, body.FolderID, body.ParentPath)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrUnknownJob):
			http.Error(w, "unknown job", http.StatusNotFound)
		case errors.Is(err, sync.ErrCycleRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, result)
}

// Upload moves one local file into the cloud for a job and swaps it for a
// pointer. The local file is only removed after the upload is confirmed.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	var body uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if body.JobID == "" || body.LocalPath == "" || body.FolderID == "" {
		http.Error(w, "job_id, local_path and folder_id required", http.StatusBadRequest)
		return
	}

	node, err := s.orc.UploadLocal(body.JobID, body.LocalPath, body.FolderID, body.RemoteParentPath)
	if err != nil {
		if errors.Is(err, sync.ErrUnknownJob) {
			http.Error(w, "unknown job", http.StatusNotFound)
			return
		}
		s.logger.Error("Upload failed: ", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, node)
}

// GetConfig returns the loaded configuration with secrets masked. The job
// list is copied before masking; the struct copy alone still shares its
// backing array with the live config.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	c := config.Current
	if c.ClientSecret != "" {
		c.ClientSecret = "******"
	}

	c.JobList = make([]config.JobOverride, len(config.Current.JobList))
	copy(c.JobList, config.Current.JobList)
	for i := range c.JobList {
		if c.JobList[i].ClientSecret != nil {
			masked := "******"
			c.JobList[i].ClientSecret = &masked
		}
	}

	writeJSON(w, c)
}

// UpdateConfig sets raw keys and writes the config file back. Changes apply
// on the next restart; the running job set is immutable.
func (s *Server) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	for key, value := range body {
		viper.Set(key, value)
	}
	if err := viper.WriteConfig(); err != nil {
		s.logger.Error("Writing config failed: ", err)
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}

	s.logger.InfoYellow("Configuration updated, restart to apply")
	writeJSON(w, map[string]any{"restart_required": true})
}
