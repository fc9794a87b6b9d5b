package sync

import (
	"sort"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/fsworker"
	"github.com/knifezred/123strm/models"
)

// Reconciler diffs a remote snapshot against the local inventory and derives
// the ordered plan for one job run.
type Reconciler struct {
	job config.Job
}

func NewReconciler(job config.Job) *Reconciler {
	return &Reconciler{job: job}
}

// Plan builds the action list. Rules:
//   - a remote video meeting the size and extension filters gets a pointer
//     unless one exists already (overwrite mode rewrites it anyway);
//   - remote sidecars matching the enabled kinds are fetched only when the
//     local file is missing, never re-downloaded;
//   - flatten mode collapses pointers into the target root and forces
//     sidecars off;
//   - a managed local file is deleted only when its remote counterpart is
//     gone from a COMPLETE snapshot; an incomplete walk yields no deletes.
//
// The plan also carries the local-path -> remote-id index for the walk,
// persisted by the orchestrator for the delete watcher.
func (r *Reconciler) Plan(snap *Snapshot, inv *fsworker.Inventory) (plan *Plan) {
	plan = &Plan{WalkComplete: snap.Complete, Index: make(map[string]string)}

	// In flatten mode, same-named videos from different folders need
	// disambiguated pointer names. Detect collisions up front.
	var flatCounts map[string]int
	if r.job.FlattenMode {
		flatCounts = make(map[string]int)
		for _, file := range snap.Files {
			if hasExt(file.Name, r.job.VideoExtensions) {
				flatCounts[FlatPointerName(file.Path, false)]++
			}
		}
	}

	// present holds every local path whose remote counterpart exists in the
	// snapshot; anything managed outside it is stale.
	present := make(map[string]bool)

	for _, file := range snap.Files {
		if hasExt(file.Name, r.job.VideoExtensions) {
			rel := PointerPath(file.Path)
			if r.job.FlattenMode {
				rel = FlatPointerName(file.Path, flatCounts[FlatPointerName(file.Path, false)] > 1)
			}
			present[rel] = true
			plan.Index[rel] = file.FileID

			if file.Size < r.job.MinFileSize {
				continue
			}
			if _, exists := inv.Entries[rel]; exists && !r.job.Overwrite {
				plan.Skipped++
				continue
			}
			plan.Pointers = append(plan.Pointers, PointerAction{File: file, LocalPath: rel})
			continue
		}

		// Non-video: the mirrored counterpart is the literal relative path
		present[file.Path] = true
		plan.Index[file.Path] = file.FileID

		if r.job.FlattenMode {
			continue
		}

		kind, wanted := r.sidecar(file)
		if !wanted {
			continue
		}
		if _, exists := inv.Entries[file.Path]; exists {
			plan.Skipped++
			continue
		}
		plan.Assets = append(plan.Assets, AssetAction{File: file, LocalPath: file.Path, Kind: kind})
	}

	if r.job.CleanLocal && snap.Complete {
		var stale []string
		for rel, entry := range inv.Entries {
			if entry.Kind.Managed() && !present[rel] {
				stale = append(stale, rel)
			}
		}
		sort.Strings(stale)
		plan.Deletes = stale
	}

	return
}

// sidecar reports whether the job downloads this remote file as a sidecar
func (r *Reconciler) sidecar(file models.RemoteNode) (kind models.EntryKind, wanted bool) {
	switch {
	case hasExt(file.Name, []string{".nfo"}):
		return models.KindNFO, r.job.NFO
	case hasExt(file.Name, r.job.SubtitleExtensions):
		return models.KindSubtitle, r.job.Subtitle
	case hasExt(file.Name, r.job.ImageExtensions):
		return models.KindImage, r.job.Image && hasSuffix(file.Name, r.job.DownloadImageSuffix)
	}

	return models.KindOther, false
}
