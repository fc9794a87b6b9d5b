package cloud

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lazybark/go-helpers/hasher"

	"github.com/knifezred/123strm/models"
)

type uploadCompleteData struct {
	Completed bool  `json:"completed"`
	FileID    int64 `json:"fileID"`
}

// Upload sends a local file into the given remote folder and returns the
// created node. Instant upload (etag reuse) is attempted first; otherwise the
// file goes up in slices. The local file is never touched here; deleting it
// after a confirmed upload is the caller's decision.
func (c *Client) Upload(localPath, folderID string) (node models.RemoteNode, err error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return
	}

	etag, err := hasher.HashFilePath(localPath, hasher.MD5, 8192)
	if err != nil {
		return node, fmt.Errorf("hashing %s: %w", localPath, err)
	}

	parentID, err := strconv.ParseInt(folderID, 10, 64)
	if err != nil {
		return node, fmt.Errorf("bad folder id %q: %w", folderID, err)
	}

	name := filepath.Base(localPath)
	payload := map[string]any{
		"parentFileID": parentID,
		"filename":     name,
		"etag":         etag,
		"size":         info.Size(),
		"duplicate":    1,
		"containDir":   false,
	}

	var created uploadCreateData
	if err = c.request("POST", "/upload/v2/file/create", payload, &created); err != nil {
		return node, fmt.Errorf("upload create for %s: %w", name, err)
	}

	if created.Reuse {
		c.logger.InfoGreen(fmt.Sprintf("Instant upload matched: %s", name))
		return models.RemoteNode{
			FileID: strconv.FormatInt(created.FileID, 10),
			Name:   name,
			Size:   info.Size(),
		}, nil
	}

	if info.Size() > MaxUploadSize {
		return node, fmt.Errorf("%s exceeds the %d byte upload limit", name, int64(MaxUploadSize))
	}
	if created.PreuploadID == "" || len(created.Servers) == 0 {
		return node, fmt.Errorf("upload create for %s returned no upload target", name)
	}

	if err = c.uploadSlices(localPath, name, created); err != nil {
		return
	}

	var done uploadCompleteData
	if err = c.request("POST", "/upload/v2/file/upload_complete", map[string]any{"preuploadID": created.PreuploadID}, &done); err != nil {
		return node, fmt.Errorf("upload complete for %s: %w", name, err)
	}
	if !done.Completed {
		return node, fmt.Errorf("upload of %s not confirmed by provider", name)
	}

	return models.RemoteNode{
		FileID: strconv.FormatInt(done.FileID, 10),
		Name:   name,
		Size:   info.Size(),
	}, nil
}

// uploadSlices streams the file to the upload server chunk by chunk.
// Slices are strictly sequential; parallel upload trips the provider's
// risk controls.
func (c *Client) uploadSlices(localPath, name string, created uploadCreateData) (err error) {
	sliceSize := created.SliceSize
	if sliceSize <= 0 {
		sliceSize = 4 << 20
	}

	file, err := os.Open(localPath)
	if err != nil {
		return
	}
	defer file.Close()

	token, err := c.accessToken()
	if err != nil {
		return
	}

	target := created.Servers[0] + "/upload/v2/file/slice"
	buf := make([]byte, sliceSize)
	sliceNo := 0

	for {
		n, readErr := io.ReadFull(file, buf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return readErr
		}
		sliceNo++

		if err = c.uploadOneSlice(target, token, name, created.PreuploadID, sliceNo, buf[:n]); err != nil {
			return fmt.Errorf("slice %d of %s: %w", sliceNo, name, err)
		}
		c.logger.Info(fmt.Sprintf("Uploaded slice %d (%d bytes) of %s", sliceNo, n, name))

		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	return nil
}

func (c *Client) uploadOneSlice(target, token, name, preuploadID string, sliceNo int, chunk []byte) (err error) {
	sum := md5.Sum(chunk)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("slice", name)
	if err != nil {
		return
	}
	if _, err = part.Write(chunk); err != nil {
		return
	}
	form.WriteField("preuploadID", preuploadID)
	form.WriteField("sliceNo", strconv.Itoa(sliceNo))
	form.WriteField("sliceMD5", hex.EncodeToString(sum[:]))
	form.WriteField("sliceSize", strconv.Itoa(len(chunk)))
	if err = form.Close(); err != nil {
		return
	}

	req, err := http.NewRequest("POST", target, &body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Platform", "open_platform")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding slice response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}

	return nil
}
