package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// APIBase is the 123pan open platform endpoint
	APIBase = "https://open-api.123pan.com"

	// MaxUploadSize caps non-instant uploads; the provider rejects larger files
	MaxUploadSize = 10 << 30

	// listPageLimit is the max page size the list endpoint accepts
	listPageLimit = 100

	entryTypeFile   = 0
	entryTypeFolder = 1
)

type (
	// envelope is the common response wrapper of every open-API call
	envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	// APIError is a non-zero response code from the provider
	APIError struct {
		Code    int
		Message string
	}

	tokenData struct {
		AccessToken string `json:"accessToken"`
		ExpiredAt   string `json:"expiredAt"`
	}

	listEntry struct {
		FileID   int64  `json:"fileId"`
		Filename string `json:"filename"`
		Type     int    `json:"type"`
		Size     int64  `json:"size"`
		Trashed  int    `json:"trashed"`
	}

	listData struct {
		FileList   []listEntry `json:"fileList"`
		LastFileID int64       `json:"lastFileId"`
	}

	detailData struct {
		FileID   int64  `json:"fileID"`
		Filename string `json:"filename"`
		Type     int    `json:"type"`
		Size     int64  `json:"size"`
	}

	downloadData struct {
		DownloadURL string `json:"downloadUrl"`
	}

	uploadCreateData struct {
		Reuse       bool     `json:"reuse"`
		FileID      int64    `json:"fileID"`
		PreuploadID string   `json:"preuploadID"`
		SliceSize   int64    `json:"sliceSize"`
		Servers     []string `json:"servers"`
	}
)

func (e *APIError) Error() string {
	return fmt.Sprintf("123pan API error %d: %s", e.Code, e.Message)
}

// IsAuthError reports whether err is the provider's credential rejection
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == 401
}
