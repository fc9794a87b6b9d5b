package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazybark/go-pretty-code/logs"
	"gorm.io/gorm"

	"github.com/knifezred/123strm/sync"
)

// Server is the HTTP face of the mirror: the 302 redirect endpoint pointer
// files resolve through, plus job status, manual scrape, upload and config
// management. No HTML, JSON only.
type Server struct {
	orc    *sync.Orchestrator
	db     *gorm.DB
	logger *logs.Logger
}

func NewServer(orc *sync.Orchestrator, db *gorm.DB, logger *logs.Logger) *Server {
	return &Server{orc: orc, db: db, logger: logger}
}

// Router builds the route table
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/get_file_url/{fileID}/{jobID}", s.GetFileURL)
	r.Get("/jobs", s.ListJobs)
	r.Get("/jobs/{id}/runs", s.JobRuns)
	r.Post("/scrape", s.Scrape)
	r.Post("/upload", s.Upload)
	r.Get("/config", s.GetConfig)
	r.Post("/config", s.UpdateConfig)

	return r
}

// Start blocks serving HTTP on listen
func (s *Server) Start(listen string) error {
	s.logger.InfoCyan(fmt.Sprintf("HTTP server listening on %s", listen))

	return http.ListenAndServe(listen, s.Router())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
