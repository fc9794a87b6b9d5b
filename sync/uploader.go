package sync

import (
	"fmt"
	"os"
	"path"

	"github.com/lazybark/go-pretty-code/logs"

	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/models"
)

// UploadSyncer moves a local media file into the cloud and replaces it with
// a pointer. The contract is all-or-nothing: only a confirmed upload deletes
// the local original and writes the pointer; any failure leaves the local
// file exactly as it was and writes nothing.
type UploadSyncer struct {
	job    config.Job
	drive  Uploader
	writer *PointerWriter
	logger *logs.Logger
}

func NewUploadSyncer(job config.Job, drive Uploader, writer *PointerWriter, logger *logs.Logger) *UploadSyncer {
	return &UploadSyncer{job: job, drive: drive, writer: writer, logger: logger}
}

// Sync uploads localPath into the remote folder, deletes the local original
// on confirmed success and materializes its pointer under the job's target
// dir. remoteParentPath is the mirrored path of the destination folder and
// determines where the pointer lands.
func (u *UploadSyncer) Sync(localPath, folderID, remoteParentPath string) (node models.RemoteNode, err error) {
	node, err = u.drive.Upload(localPath, folderID)
	if err != nil {
		return node, fmt.Errorf("uploading %s: %w", localPath, err)
	}
	node.Path = path.Join(remoteParentPath, node.Name)

	if err = os.Remove(localPath); err != nil {
		// The upload is confirmed; a leftover local file is worth a log
		// line but must not block the pointer.
		u.logger.Error(fmt.Sprintf("Removing uploaded original %s failed: ", localPath), err)
	} else {
		u.logger.Info(fmt.Sprintf("Uploaded and removed %s", localPath))
	}

	rel := PointerPath(node.Path)
	if u.job.FlattenMode {
		rel = FlatPointerName(node.Path, false)
	}

	if _, err = u.writer.Write(PointerAction{File: node, LocalPath: rel}); err != nil {
		return node, fmt.Errorf("pointer for uploaded %s: %w", node.Path, err)
	}

	return node, nil
}
