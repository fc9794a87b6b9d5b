package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// tokenCacheFile is the per-account on-disk token cache
func (c *Client) tokenCacheFile() string {
	return filepath.Join(c.cacheDir, "token_cache_"+c.clientID+".json")
}

// accessToken returns a valid bearer token, preferring the in-memory copy,
// then the on-disk cache, then a fresh auth call. Cached tokens are discarded
// one day before their stated expiry.
func (c *Client) accessToken() (token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(24*time.Hour).Before(c.tokenExpires) {
		return c.token, nil
	}

	if c.useTokenCache {
		if token, expires, ok := c.readTokenCache(); ok {
			c.token = token
			c.tokenExpires = expires
			return token, nil
		}
	}

	data, err := c.authenticate()
	if err != nil {
		return "", err
	}

	expires, err := time.Parse(time.RFC3339, data.ExpiredAt)
	if err != nil {
		// Unparseable expiry: keep the token for this process only
		c.logger.Warn("Unparseable token expiry: ", data.ExpiredAt)
		expires = time.Now().Add(48 * time.Hour)
	}

	c.token = data.AccessToken
	c.tokenExpires = expires
	c.useTokenCache = true
	if err = c.writeTokenCache(data); err != nil {
		// Cache write failure forces a fresh token next process start
		c.logger.Error("Token cache write failed: ", err)
		c.useTokenCache = false
	}

	return c.token, nil
}

// readTokenCache loads the cached token if it is still far enough from expiry
func (c *Client) readTokenCache() (token string, expires time.Time, ok bool) {
	raw, err := os.ReadFile(c.tokenCacheFile())
	if err != nil {
		return
	}

	var data tokenData
	if err = json.Unmarshal(raw, &data); err != nil {
		return
	}

	expires, err = time.Parse(time.RFC3339, data.ExpiredAt)
	if err != nil {
		return
	}

	if !time.Now().Add(24 * time.Hour).Before(expires) {
		os.Remove(c.tokenCacheFile())
		return "", time.Time{}, false
	}

	return data.AccessToken, expires, true
}

func (c *Client) writeTokenCache(data tokenData) (err error) {
	if err = os.MkdirAll(c.cacheDir, 0755); err != nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return
	}

	return os.WriteFile(c.tokenCacheFile(), raw, 0600)
}

// authenticate trades client credentials for a fresh access token
func (c *Client) authenticate() (data tokenData, err error) {
	payload, err := json.Marshal(map[string]string{
		"clientID":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest("POST", c.apiBase+"/api/v1/access_token", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Platform", "open_platform")

	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return data, fmt.Errorf("decoding auth response: %w", err)
	}
	if env.Code != 0 {
		return data, &APIError{Code: env.Code, Message: env.Message}
	}

	err = json.Unmarshal(env.Data, &data)

	return
}

// invalidateToken drops memory and disk token state after a 401
func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.useTokenCache = false
	os.Remove(c.tokenCacheFile())
}
