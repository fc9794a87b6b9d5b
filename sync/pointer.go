package sync

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lazybark/go-pretty-code/logs"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/models"
)

// PointerWriter materializes strm files for one job. Content depends on the
// job's URL mode:
//   - redirect: a stable proxy address resolved to a fresh link at playback;
//   - path prefix: a mounted-filesystem path, no URL at all;
//   - direct: a resolved download URL served through the account's URL cache.
type PointerWriter struct {
	job    config.Job
	cache  *URLCache
	logger *logs.Logger
}

// NewPointerWriter creates a writer. cache is only consulted in direct-URL
// mode and may be nil otherwise.
func NewPointerWriter(job config.Job, cache *URLCache, logger *logs.Logger) *PointerWriter {
	return &PointerWriter{job: job, cache: cache, logger: logger}
}

// Write creates the pointer file for one action, making parent dirs as
// needed. An existing pointer is left alone unless the job runs in overwrite
// mode; wrote reports whether the file was actually (re)written.
func (p *PointerWriter) Write(a PointerAction) (wrote bool, err error) {
	target := filepath.Join(p.job.TargetDir, filepath.FromSlash(a.LocalPath))

	if _, statErr := os.Stat(target); statErr == nil && !p.job.Overwrite {
		return false, nil
	}

	content, err := p.content(a.File)
	if err != nil {
		return false, fmt.Errorf("pointer content for %s: %w", a.File.Path, err)
	}

	if err = os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return false, err
	}
	if err = os.WriteFile(target, []byte(content), 0644); err != nil {
		return false, err
	}

	p.logger.Info(fmt.Sprintf("Generated %s", target))

	return true, nil
}

// content builds the single line a media player will resolve
func (p *PointerWriter) content(file models.RemoteNode) (string, error) {
	if p.job.UseRedirectURL {
		return fmt.Sprintf("%s/get_file_url/%s/%s",
			strings.TrimRight(p.job.Proxy, "/"), file.FileID, url.PathEscape(p.job.ID)), nil
	}

	if p.job.PathPrefix != "" {
		return path.Join(p.job.PathPrefix, file.Path), nil
	}

	if p.cache == nil {
		return "", fmt.Errorf("direct URL mode without a resolver cache")
	}

	return p.cache.Resolve(file.FileID)
}
