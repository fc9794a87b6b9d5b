package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/lazybark/go-pretty-code/logs"

	"github.com/knifezred/123strm/models"
)

// listInterval paces folder listing so the provider's abuse heuristics stay
// quiet. The open API allows roughly 3 list calls per second.
const listInterval = 340 * time.Millisecond

// rateLimitPause is how long to back off after the provider reports throttling
const rateLimitPause = 30 * time.Second

// Client talks to the 123pan open API for one account. One Client per
// client_id; accounts never share tokens or file id namespaces.
type Client struct {
	clientID     string
	clientSecret string
	apiBase      string
	cacheDir     string
	logger       *logs.Logger
	http         *http.Client

	mu            sync.Mutex
	token         string
	tokenExpires  time.Time
	useTokenCache bool
	lastList      time.Time

	// sleep is swappable in tests to avoid real pauses
	sleep func(time.Duration)
}

// NewClient creates an API client for one account. cacheDir holds the
// on-disk token cache.
func NewClient(clientID, clientSecret, cacheDir string, logger *logs.Logger) *Client {
	return &Client{
		clientID:      clientID,
		clientSecret:  clientSecret,
		apiBase:       APIBase,
		cacheDir:      cacheDir,
		logger:        logger,
		http:          &http.Client{Timeout: 30 * time.Second},
		useTokenCache: true,
		sleep:         time.Sleep,
	}
}

// ClientID returns the account identifier this client authenticates as
func (c *Client) ClientID() string {
	return c.clientID
}

// FolderName resolves a folder id to its remote name
func (c *Client) FolderName(folderID string) (name string, err error) {
	var data detailData
	err = c.request("GET", "/api/v1/file/detail?fileID="+url.QueryEscape(folderID), nil, &data)
	if err != nil {
		return
	}

	return data.Filename, nil
}

// ListFolder returns one page of a folder listing. lastFileID is the cursor
// from the previous page ("" for the first). Calls are paced to listInterval.
func (c *Client) ListFolder(folderID, lastFileID string) (page models.Page, err error) {
	c.pace()

	path := fmt.Sprintf("/api/v2/file/list?parentFileId=%s&limit=%d", url.QueryEscape(folderID), listPageLimit)
	if lastFileID != "" {
		path += "&lastFileId=" + url.QueryEscape(lastFileID)
	}

	var data listData
	err = c.request("GET", path, nil, &data)
	if err != nil {
		return
	}

	for _, item := range data.FileList {
		if item.Trashed == 1 {
			continue
		}
		page.Entries = append(page.Entries, models.RemoteNode{
			FileID:   strconv.FormatInt(item.FileID, 10),
			Name:     item.Filename,
			Size:     item.Size,
			IsFolder: item.Type == entryTypeFolder,
		})
	}
	if data.LastFileID != -1 {
		page.NextFileID = strconv.FormatInt(data.LastFileID, 10)
	}

	return
}

// ResolveDownloadURL fetches a fresh direct download link for a file
func (c *Client) ResolveDownloadURL(fileID string) (downloadURL string, err error) {
	var data downloadData
	err = c.request("GET", "/api/v1/file/download_info?fileId="+url.QueryEscape(fileID), nil, &data)
	if err != nil {
		return
	}

	return data.DownloadURL, nil
}

// Trash moves a remote file to the provider's trash. The engine itself never
// calls this; only the delete watcher does.
func (c *Client) Trash(fileID string) (err error) {
	// Provider caps trash calls at 1 qps
	c.sleep(time.Second)

	payload := map[string]any{"fileIDs": []string{fileID}}
	return c.request("POST", "/api/v1/file/trash", payload, nil)
}

// Heartbeat verifies the account's token with a minimal listing. A failed
// auth disables the on-disk token cache so the next call fetches fresh.
func (c *Client) Heartbeat() (err error) {
	err = c.request("GET", "/api/v2/file/list?parentFileId=0&limit=1", nil, &listData{})
	if err != nil && IsAuthError(err) {
		c.mu.Lock()
		c.useTokenCache = false
		c.token = ""
		c.mu.Unlock()
	}

	return
}

// pace enforces the minimum interval between listing calls
func (c *Client) pace() {
	c.mu.Lock()
	wait := listInterval - time.Since(c.lastList)
	c.lastList = time.Now()
	c.mu.Unlock()

	if wait > 0 {
		c.sleep(wait)
	}
}

// request performs one authenticated API call and decodes data into out
func (c *Client) request(method, path string, payload any, out any) (err error) {
	token, err := c.accessToken()
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.apiBase+path, body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Platform", "open_platform")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response for %s: %w", path, err)
	}

	if env.Code != 0 {
		if env.Code == 401 {
			c.invalidateToken()
		} else {
			// Provider throttling: pause before the caller retries
			c.logger.Warn(fmt.Sprintf("API code %d on %s, pausing %v", env.Code, path, rateLimitPause))
			c.sleep(rateLimitPause)
		}
		return &APIError{Code: env.Code, Message: env.Message}
	}

	if out != nil {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data for %s: %w", path, err)
		}
	}

	return nil
}
