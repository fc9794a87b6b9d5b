package sync

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lazybark/go-pretty-code/logs"

	"github.com/knifezred/123strm/config"
)

// AssetFetcher downloads sidecar files (subtitles, images, nfo) one at a
// time. Transfers are strictly sequential per job; parallel downloads trip
// the provider's risk controls.
type AssetFetcher struct {
	job      config.Job
	resolver Resolver
	http     *http.Client
	logger   *logs.Logger
}

func NewAssetFetcher(job config.Job, resolver Resolver, logger *logs.Logger) *AssetFetcher {
	return &AssetFetcher{
		job:      job,
		resolver: resolver,
		// No overall timeout: sidecars are small but links can be slow
		http:   &http.Client{},
		logger: logger,
	}
}

// Fetch downloads one sidecar to its mirrored path. An existing local file
// wins unconditionally, pre-existing scrape data is never re-downloaded.
// The write goes through a temp file so a failed transfer leaves nothing.
func (f *AssetFetcher) Fetch(a AssetAction) (fetched bool, err error) {
	target := filepath.Join(f.job.TargetDir, filepath.FromSlash(a.LocalPath))

	if _, statErr := os.Stat(target); statErr == nil {
		return false, nil
	}

	downloadURL, err := f.resolver.ResolveDownloadURL(a.File.FileID)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", a.File.Path, err)
	}

	if err = os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return false, err
	}

	if err = f.download(downloadURL, target); err != nil {
		return false, fmt.Errorf("downloading %s: %w", a.File.Path, err)
	}

	f.logger.Info(fmt.Sprintf("Downloaded %s %s", a.Kind, target))

	return true, nil
}

// download streams url into target via temp file + rename
func (f *AssetFetcher) download(url, target string) (err error) {
	resp, err := f.http.Get(url)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := target + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return
	}

	_, err = io.Copy(file, resp.Body)
	file.Close()
	if err != nil {
		os.Remove(tmp)
		return
	}

	if err = os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return
	}

	return nil
}
