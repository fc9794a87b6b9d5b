package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/lazybark/go-pretty-code/logs"
	"gorm.io/gorm"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/fsworker"
	"github.com/knifezred/123strm/models"
)

// Orchestrator owns the sync loop: it runs jobs strictly one after another,
// shares one drive client and one URL cache per account, and persists the
// path index and run summaries. A cycle already in flight makes any new
// trigger return ErrCycleRunning: triggers are dropped, never queued.
type Orchestrator struct {
	jobs   []config.Job
	drives map[string]Drive     // keyed by job id, shared per account
	caches map[string]*URLCache // keyed by account client id
	fw     *fsworker.Fsworker
	db     *gorm.DB
	logger *logs.Logger

	mu       sync.Mutex
	jobPause time.Duration
	sleep    func(time.Duration)
}

// NewOrchestrator wires jobs to drives and caches. Jobs sharing credentials
// share one drive and one cache; file ids are only meaningful per account,
// and config validation guarantees such jobs agree on the cache TTL.
// db may be nil; persistence is then skipped.
func NewOrchestrator(jobs []config.Job, db *gorm.DB, fw *fsworker.Fsworker, logger *logs.Logger, newDrive func(config.Job) Drive) *Orchestrator {
	o := &Orchestrator{
		jobs:     jobs,
		drives:   make(map[string]Drive),
		caches:   make(map[string]*URLCache),
		fw:       fw,
		db:       db,
		logger:   logger,
		jobPause: time.Second,
		sleep:    time.Sleep,
	}

	byAccount := make(map[string]Drive)
	for _, job := range jobs {
		drive, ok := byAccount[job.ClientID]
		if !ok {
			drive = newDrive(job)
			byAccount[job.ClientID] = drive
			o.caches[job.ClientID] = NewURLCache(drive, time.Duration(job.CacheExpireTime)*time.Second)
		}
		o.drives[job.ID] = drive
	}

	return o
}

// RunCycle executes every configured job in config order. Only one cycle may
// run at a time; a trigger arriving mid-cycle is dropped.
func (o *Orchestrator) RunCycle() (results []JobResult, err error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer o.mu.Unlock()

	cycleID := uuid.Must(uuid.NewV4()).String()
	o.logger.InfoCyan(fmt.Sprintf("Cycle %s started, %d job(s)", cycleID, len(o.jobs)))

	o.heartbeats()

	for i, job := range o.jobs {
		if i > 0 {
			o.sleep(o.jobPause)
		}

		result := o.runJob(job, cycleID, "", "")
		o.saveRun(result)
		results = append(results, result)
	}

	o.logger.InfoGreen(fmt.Sprintf("Cycle %s finished", cycleID))

	return results, nil
}

// RunJob executes a single job on demand. A non-empty folderID scopes the
// walk to that subtree; parentPath names the subtree's mirrored parent so
// scoped output lands at the same local paths a full run produces. Scoped
// runs never delete anything and leave the path index untouched, since the
// snapshot covers only part of the job's tree.
func (o *Orchestrator) RunJob(jobID, folderID, parentPath string) (result JobResult, err error) {
	job, ok := o.Job(jobID)
	if !ok {
		return result, ErrUnknownJob
	}

	if !o.mu.TryLock() {
		return result, ErrCycleRunning
	}
	defer o.mu.Unlock()

	cycleID := uuid.Must(uuid.NewV4()).String()

	result = o.runJob(job, cycleID, folderID, parentPath)
	o.saveRun(result)

	return result, nil
}

// runJob is the fixed execution order for one job: walk, scan, plan, then
// pointers, assets, deletes, prune. An empty folderID means a full run over
// the job's roots; otherwise only the named subtree is walked, mirrored
// under parentPath. Callers hold the cycle lock.
func (o *Orchestrator) runJob(job config.Job, cycleID, folderID, parentPath string) (result JobResult) {
	result = JobResult{JobID: job.ID, CycleID: cycleID, StartedAt: time.Now()}
	defer func() { result.FinishedAt = time.Now() }()

	drive := o.drives[job.ID]
	walker := NewWalker(drive, o.logger)

	full := folderID == ""
	var snap *Snapshot
	if full {
		o.logger.Info(fmt.Sprintf("Job %s: walking folder(s) %s", job.ID, job.RootFolderID))
		snap = walker.Walk(job.RootFolderID)
	} else {
		o.logger.Info(fmt.Sprintf("Job %s: walking folder %s under %q", job.ID, folderID, parentPath))
		snap = walker.WalkAt(folderID, parentPath)
	}
	if !snap.Complete {
		result.Degraded = true
		result.Errors = append(result.Errors, snap.Failures...)
		if job.CleanLocal {
			o.logger.Warn(fmt.Sprintf("Job %s: %v, delete phase skipped this cycle", job.ID, ErrWalkIncomplete))
		}
	}

	inv, err := o.fw.ScanInventory(job.TargetDir, fsworker.Classifier{
		SubtitleExts: job.SubtitleExtensions,
		ImageExts:    job.ImageExtensions,
	})
	if err != nil {
		result.fail(fmt.Sprintf("inventory: %v", err))
		return
	}

	plan := NewReconciler(job).Plan(snap, inv)
	result.Skipped = plan.Skipped

	writer := NewPointerWriter(job, o.caches[job.ClientID], o.logger)
	for _, a := range plan.Pointers {
		wrote, err := writer.Write(a)
		if err != nil {
			result.fail(fmt.Sprintf("pointer %s: %v", a.LocalPath, err))
			continue
		}
		if wrote {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	fetcher := NewAssetFetcher(job, drive, o.logger)
	for _, a := range plan.Assets {
		fetched, err := fetcher.Fetch(a)
		if err != nil {
			result.fail(fmt.Sprintf("asset %s: %v", a.LocalPath, err))
			continue
		}
		if fetched {
			result.Assets++
		} else {
			result.Skipped++
		}
	}

	if full {
		for _, rel := range plan.Deletes {
			target := filepath.Join(job.TargetDir, filepath.FromSlash(rel))
			if err := os.Remove(target); err != nil {
				result.fail(fmt.Sprintf("delete %s: %v", rel, err))
				continue
			}
			o.logger.InfoYellow(fmt.Sprintf("Removed stale %s", target))
			result.Deleted++
		}
		o.fw.PruneEmptyDirs(job.TargetDir)

		if snap.Complete {
			o.storeIndex(job, plan)
		}
	}

	// New directories created by this run must enter the watch set too
	if o.fw.Watcher != nil {
		if err := o.fw.WatchTree(job.TargetDir); err != nil {
			o.logger.Warn(fmt.Sprintf("Watching %s failed: %v", job.TargetDir, err))
		}
	}

	o.logger.Info(fmt.Sprintf("Job %s: %d created, %d assets, %d skipped, %d deleted, %d failed",
		job.ID, result.Created, result.Assets, result.Skipped, result.Deleted, result.Failed))

	return
}

// VerifyAccounts probes every configured account once and returns the first
// failure. Run at startup so credential problems surface before any job does.
func (o *Orchestrator) VerifyAccounts() error {
	probed := make(map[string]bool)
	for _, job := range o.jobs {
		if probed[job.ClientID] {
			continue
		}
		probed[job.ClientID] = true

		if err := o.drives[job.ID].Heartbeat(); err != nil {
			return fmt.Errorf("account %s: %w", job.ClientID, err)
		}
	}

	return nil
}

// heartbeats probes every account once before the cycle so auth problems
// surface up front instead of mid-walk
func (o *Orchestrator) heartbeats() {
	probed := make(map[string]bool)
	for _, job := range o.jobs {
		if probed[job.ClientID] {
			continue
		}
		probed[job.ClientID] = true

		if err := o.drives[job.ID].Heartbeat(); err != nil {
			o.logger.Warn(fmt.Sprintf("Heartbeat for account %s failed: %v", job.ClientID, err))
		}
	}
}

// storeIndex replaces the job's path index with the current walk's mapping.
// Only complete walks qualify: a partial index would make the delete watcher
// blind to files it should know about.
func (o *Orchestrator) storeIndex(job config.Job, plan *Plan) {
	if o.db == nil {
		return
	}

	err := o.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", job.ID).Delete(&models.PathIndex{}).Error; err != nil {
			return err
		}
		for rel, fileID := range plan.Index {
			rec := models.PathIndex{
				JobID:  job.ID,
				Path:   filepath.Clean(filepath.Join(job.TargetDir, filepath.FromSlash(rel))),
				FileID: fileID,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.logger.Error(fmt.Sprintf("Rewriting path index for job %s failed: ", job.ID), err)
	}
}

// saveRun persists one job summary for the HTTP status surface
func (o *Orchestrator) saveRun(result JobResult) {
	if o.db == nil {
		return
	}

	run := models.JobRun{
		CycleID:    result.CycleID,
		JobID:      result.JobID,
		Created:    result.Created,
		Assets:     result.Assets,
		Skipped:    result.Skipped,
		Deleted:    result.Deleted,
		Failed:     result.Failed,
		Degraded:   result.Degraded,
		WalkErrors: strings.Join(result.Errors, "; "),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if err := o.db.Create(&run).Error; err != nil {
		o.logger.Error("Saving job run failed: ", err)
	}
}

// UploadLocal moves a local file into the cloud for a job and swaps it for a
// pointer. remoteParentPath is the mirrored path of the destination folder.
func (o *Orchestrator) UploadLocal(jobID, localPath, folderID, remoteParentPath string) (models.RemoteNode, error) {
	job, ok := o.Job(jobID)
	if !ok {
		return models.RemoteNode{}, ErrUnknownJob
	}

	writer := NewPointerWriter(job, o.caches[job.ClientID], o.logger)
	syncer := NewUploadSyncer(job, o.drives[job.ID], writer, o.logger)

	return syncer.Sync(localPath, folderID, remoteParentPath)
}

// ResolveURL resolves a fresh download URL for a job's file through the
// account's cache. Serves the redirect endpoint.
func (o *Orchestrator) ResolveURL(jobID, fileID string) (string, error) {
	job, ok := o.Job(jobID)
	if !ok {
		return "", ErrUnknownJob
	}

	return o.caches[job.ClientID].Resolve(fileID)
}

// Job returns the resolved job config by id
func (o *Orchestrator) Job(id string) (config.Job, bool) {
	for _, j := range o.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return config.Job{}, false
}

// Jobs returns the configured jobs in config order
func (o *Orchestrator) Jobs() []config.Job {
	return o.jobs
}

// DriveFor returns the drive serving a job, or nil for unknown jobs.
// The delete watcher uses it to trash remote counterparts.
func (o *Orchestrator) DriveFor(jobID string) Drive {
	return o.drives[jobID]
}

// PurgeCaches drops expired URL cache entries across all accounts
func (o *Orchestrator) PurgeCaches() (dropped int) {
	for _, cache := range o.caches {
		dropped += cache.Purge()
	}
	return
}
