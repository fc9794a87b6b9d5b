package config

import (
	"strings"
	"testing"
)

func baseConfig() Config {
	return Config{
		ClientID:        "global-id",
		ClientSecret:    "global-secret",
		TargetDir:       "/media",
		Proxy:           "http://127.0.0.1:1236",
		UseRedirectURL:  true,
		MinFileSize:     100,
		VideoExtensions: []string{".mkv"},
		CacheExpireTime: 300,
	}
}

func TestResolveInheritsGlobals(t *testing.T) {
	c := baseConfig()
	c.JobList = []JobOverride{{ID: "tv", RootFolderID: "1"}}

	jobs := c.Resolve()
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	j := jobs[0]
	if j.ClientID != "global-id" || j.TargetDir != "/media" || j.MinFileSize != 100 {
		t.Errorf("globals not inherited: %+v", j)
	}
	if !j.UseRedirectURL {
		t.Error("bool global not inherited")
	}
}

func TestResolveAppliesOverrides(t *testing.T) {
	c := baseConfig()
	target := "/other"
	redirect := false
	size := int64(0)
	c.JobList = []JobOverride{{
		ID:             "movies",
		RootFolderID:   "2",
		TargetDir:      &target,
		UseRedirectURL: &redirect,
		MinFileSize:    &size,
	}}

	j := c.Resolve()[0]
	if j.TargetDir != "/other" {
		t.Errorf("target dir override lost: %q", j.TargetDir)
	}
	if j.UseRedirectURL {
		t.Error("explicit false override must beat the global true")
	}
	if j.MinFileSize != 0 {
		t.Error("explicit zero override must beat the global value")
	}
}

func validJobs() []Job {
	return []Job{
		{ID: "tv", ClientID: "a", ClientSecret: "s", RootFolderID: "1", TargetDir: "/media/tv"},
		{ID: "movies", ClientID: "a", ClientSecret: "s", RootFolderID: "2", TargetDir: "/media/movies"},
	}
}

func TestValidateJobsAcceptsDisjointTargets(t *testing.T) {
	if err := ValidateJobs(validJobs()); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateJobsRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Job) []Job
		want   string
	}{
		{
			name:   "no jobs",
			mutate: func([]Job) []Job { return nil },
			want:   "no jobs",
		},
		{
			name: "empty id",
			mutate: func(j []Job) []Job {
				j[0].ID = ""
				return j
			},
			want: "empty id",
		},
		{
			name: "duplicate id",
			mutate: func(j []Job) []Job {
				j[1].ID = j[0].ID
				return j
			},
			want: "duplicate",
		},
		{
			name: "missing credentials",
			mutate: func(j []Job) []Job {
				j[0].ClientSecret = ""
				return j
			},
			want: "credentials",
		},
		{
			name: "missing root",
			mutate: func(j []Job) []Job {
				j[1].RootFolderID = ""
				return j
			},
			want: "root_folder_id",
		},
		{
			name: "mismatched cache ttl on one account",
			mutate: func(j []Job) []Job {
				j[0].CacheExpireTime = 300
				j[1].CacheExpireTime = 600
				return j
			},
			want: "cache_expire_time",
		},
		{
			name: "identical targets",
			mutate: func(j []Job) []Job {
				j[1].TargetDir = j[0].TargetDir
				return j
			},
			want: "overlap",
		},
		{
			name: "nested targets",
			mutate: func(j []Job) []Job {
				j[1].TargetDir = j[0].TargetDir + "/season1"
				return j
			},
			want: "overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobs(tt.mutate(validJobs()))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestPathsOverlap(t *testing.T) {
	if pathsOverlap("/media/tv", "/media/movies") {
		t.Error("sibling dirs do not overlap")
	}
	if !pathsOverlap("/media", "/media/tv") {
		t.Error("nested dirs overlap")
	}
	if !pathsOverlap("/media/tv/", "/media/tv") {
		t.Error("trailing separator must not hide equality")
	}
	if pathsOverlap("/media/tv", "/media/tvshows") {
		t.Error("shared name prefix is not nesting")
	}
}
