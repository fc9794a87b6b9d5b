package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	// Config is the raw on-disk configuration: global defaults plus a job list.
	// Job-level values override globals; Resolve flattens the two layers.
	Config struct {
		Listen          string        `mapstructure:"listen"`
		Proxy           string        `mapstructure:"proxy"`
		LogDir          string        `mapstructure:"log_dir"`
		SQLiteDBName    string        `mapstructure:"sqlite_db_name"`
		SyncInterval    time.Duration `mapstructure:"sync_interval"`
		RunOnStart      bool          `mapstructure:"run_on_start"`
		WatchDelete     bool          `mapstructure:"watch_delete"`
		CleanLocal      bool          `mapstructure:"clean_local"`
		CacheExpireTime int           `mapstructure:"cache_expire_time"`

		ClientID            string   `mapstructure:"client_id"`
		ClientSecret        string   `mapstructure:"client_secret"`
		TargetDir           string   `mapstructure:"target_dir"`
		PathPrefix          string   `mapstructure:"path_prefix"`
		UseRedirectURL      bool     `mapstructure:"use_redirect_url"`
		Overwrite           bool     `mapstructure:"overwrite"`
		FlattenMode         bool     `mapstructure:"flatten_mode"`
		MinFileSize         int64    `mapstructure:"min_file_size"`
		Subtitle            bool     `mapstructure:"subtitle"`
		Image               bool     `mapstructure:"image"`
		NFO                 bool     `mapstructure:"nfo"`
		VideoExtensions     []string `mapstructure:"video_extensions"`
		SubtitleExtensions  []string `mapstructure:"subtitle_extensions"`
		ImageExtensions     []string `mapstructure:"image_extensions"`
		DownloadImageSuffix []string `mapstructure:"download_image_suffix"`

		JobList []JobOverride `mapstructure:"job_list"`
	}

	// JobOverride is one job_list block. Pointer fields distinguish
	// "not set, inherit global" from an explicit false/empty override.
	JobOverride struct {
		ID                  string    `mapstructure:"id"`
		ClientID            *string   `mapstructure:"client_id"`
		ClientSecret        *string   `mapstructure:"client_secret"`
		RootFolderID        string    `mapstructure:"root_folder_id"`
		TargetDir           *string   `mapstructure:"target_dir"`
		PathPrefix          *string   `mapstructure:"path_prefix"`
		UseRedirectURL      *bool     `mapstructure:"use_redirect_url"`
		Overwrite           *bool     `mapstructure:"overwrite"`
		FlattenMode         *bool     `mapstructure:"flatten_mode"`
		MinFileSize         *int64    `mapstructure:"min_file_size"`
		Subtitle            *bool     `mapstructure:"subtitle"`
		Image               *bool     `mapstructure:"image"`
		NFO                 *bool     `mapstructure:"nfo"`
		VideoExtensions     *[]string `mapstructure:"video_extensions"`
		SubtitleExtensions  *[]string `mapstructure:"subtitle_extensions"`
		ImageExtensions     *[]string `mapstructure:"image_extensions"`
		DownloadImageSuffix *[]string `mapstructure:"download_image_suffix"`
		CacheExpireTime     *int      `mapstructure:"cache_expire_time"`
		CleanLocal          *bool     `mapstructure:"clean_local"`
	}

	// Job is one fully-resolved, immutable unit of work. All engine
	// components consume Job only; globals never leak past Resolve.
	Job struct {
		ID                  string
		ClientID            string
		ClientSecret        string
		RootFolderID        string
		TargetDir           string
		PathPrefix          string
		Proxy               string
		UseRedirectURL      bool
		Overwrite           bool
		FlattenMode         bool
		MinFileSize         int64
		Subtitle            bool
		Image               bool
		NFO                 bool
		VideoExtensions     []string
		SubtitleExtensions  []string
		ImageExtensions     []string
		DownloadImageSuffix []string
		CacheExpireTime     int
		CleanLocal          bool
	}
)

var (
	Current Config
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&Current)
	if err != nil {
		return
	}

	return
}

func setDefaults() {
	viper.SetDefault("listen", ":1236")
	viper.SetDefault("proxy", "http://127.0.0.1:1236")
	viper.SetDefault("log_dir", "log")
	viper.SetDefault("sqlite_db_name", "123strm.db")
	viper.SetDefault("sync_interval", "24h")
	viper.SetDefault("cache_expire_time", 300)
	viper.SetDefault("target_dir", "/media/")
	viper.SetDefault("min_file_size", 10485760)
	viper.SetDefault("use_redirect_url", true)
	viper.SetDefault("nfo", true)
	viper.SetDefault("video_extensions", []string{".mp4", ".mkv", ".ts", ".iso"})
	viper.SetDefault("subtitle_extensions", []string{".srt", ".ass", ".sub"})
	viper.SetDefault("image_extensions", []string{".jpg", ".jpeg", ".png", ".webp"})
}

// Resolve flattens global defaults and per-job overrides into the final
// ordered job list. Order follows config order.
func (c *Config) Resolve() (jobs []Job) {
	for _, o := range c.JobList {
		j := Job{
			ID:                  o.ID,
			ClientID:            c.ClientID,
			ClientSecret:        c.ClientSecret,
			RootFolderID:        o.RootFolderID,
			TargetDir:           c.TargetDir,
			PathPrefix:          c.PathPrefix,
			Proxy:               c.Proxy,
			UseRedirectURL:      c.UseRedirectURL,
			Overwrite:           c.Overwrite,
			FlattenMode:         c.FlattenMode,
			MinFileSize:         c.MinFileSize,
			Subtitle:            c.Subtitle,
			Image:               c.Image,
			NFO:                 c.NFO,
			VideoExtensions:     c.VideoExtensions,
			SubtitleExtensions:  c.SubtitleExtensions,
			ImageExtensions:     c.ImageExtensions,
			DownloadImageSuffix: c.DownloadImageSuffix,
			CacheExpireTime:     c.CacheExpireTime,
			CleanLocal:          c.CleanLocal,
		}
		if o.ClientID != nil {
			j.ClientID = *o.ClientID
		}
		if o.ClientSecret != nil {
			j.ClientSecret = *o.ClientSecret
		}
		if o.TargetDir != nil {
			j.TargetDir = *o.TargetDir
		}
		if o.PathPrefix != nil {
			j.PathPrefix = *o.PathPrefix
		}
		if o.UseRedirectURL != nil {
			j.UseRedirectURL = *o.UseRedirectURL
		}
		if o.Overwrite != nil {
			j.Overwrite = *o.Overwrite
		}
		if o.FlattenMode != nil {
			j.FlattenMode = *o.FlattenMode
		}
		if o.MinFileSize != nil {
			j.MinFileSize = *o.MinFileSize
		}
		if o.Subtitle != nil {
			j.Subtitle = *o.Subtitle
		}
		if o.Image != nil {
			j.Image = *o.Image
		}
		if o.NFO != nil {
			j.NFO = *o.NFO
		}
		if o.VideoExtensions != nil {
			j.VideoExtensions = *o.VideoExtensions
		}
		if o.SubtitleExtensions != nil {
			j.SubtitleExtensions = *o.SubtitleExtensions
		}
		if o.ImageExtensions != nil {
			j.ImageExtensions = *o.ImageExtensions
		}
		if o.DownloadImageSuffix != nil {
			j.DownloadImageSuffix = *o.DownloadImageSuffix
		}
		if o.CacheExpireTime != nil {
			j.CacheExpireTime = *o.CacheExpireTime
		}
		if o.CleanLocal != nil {
			j.CleanLocal = *o.CleanLocal
		}
		jobs = append(jobs, j)
	}

	return
}

// ValidateJobs rejects configurations no job may run under: missing ids or
// credentials, target dirs that nest or overlap one another, and jobs on one
// account that disagree on cache_expire_time. Overlapping targets would let
// one job's cleanup delete another job's files; jobs sharing an account
// share one URL cache and therefore one TTL.
func ValidateJobs(jobs []Job) error {
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}

	seen := make(map[string]bool)
	for _, j := range jobs {
		if j.ID == "" {
			return fmt.Errorf("job with empty id")
		}
		if seen[j.ID] {
			return fmt.Errorf("duplicate job id %q", j.ID)
		}
		seen[j.ID] = true
		if j.ClientID == "" || j.ClientSecret == "" {
			return fmt.Errorf("job %q: missing client credentials", j.ID)
		}
		if j.RootFolderID == "" {
			return fmt.Errorf("job %q: missing root_folder_id", j.ID)
		}
		if j.TargetDir == "" {
			return fmt.Errorf("job %q: missing target_dir", j.ID)
		}
	}

	ttl := make(map[string]int)
	for _, j := range jobs {
		if prev, ok := ttl[j.ClientID]; ok && prev != j.CacheExpireTime {
			return fmt.Errorf("jobs on account %q disagree on cache_expire_time (%d vs %d)",
				j.ClientID, prev, j.CacheExpireTime)
		}
		ttl[j.ClientID] = j.CacheExpireTime
	}

	for a := 0; a < len(jobs); a++ {
		for b := a + 1; b < len(jobs); b++ {
			if pathsOverlap(jobs[a].TargetDir, jobs[b].TargetDir) {
				return fmt.Errorf("jobs %q and %q: target dirs %q and %q overlap",
					jobs[a].ID, jobs[b].ID, jobs[a].TargetDir, jobs[b].TargetDir)
			}
		}
	}

	return nil
}

// pathsOverlap reports whether one cleaned path is equal to or nested in the other
func pathsOverlap(a, b string) bool {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
