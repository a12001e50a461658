// Package registryclient is the HTTP client both the sender and
// receiver engines use to publish and look up transfer
// advertisements against the relay's transfer registry.
package registryclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caesar-go/caesar/internal/relay"
)

// Client talks to one relay's registry surface over plain HTTP(S).
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against relayURL, accepting either an ws(s)://
// or http(s):// scheme; ws/wss is rewritten to http/https since the
// registry is a plain REST surface alongside the signalling upgrade.
func New(relayURL string) *Client {
	return &Client{
		baseURL: replaceScheme(relayURL),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func replaceScheme(address string) string {
	switch {
	case strings.HasPrefix(address, "wss://"):
		return "https://" + strings.TrimPrefix(address, "wss://")
	case strings.HasPrefix(address, "ws://"):
		return "http://" + strings.TrimPrefix(address, "ws://")
	default:
		return address
	}
}

// Upload PUTs an advertisement to /upload and returns the
// (possibly merged) record the relay stored.
func (c *Client) Upload(ad relay.Advertisement) (relay.Advertisement, error) {
	body, err := json.Marshal(ad)
	if err != nil {
		return relay.Advertisement{}, err
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+"/upload", bytes.NewReader(body))
	if err != nil {
		return relay.Advertisement{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return relay.Advertisement{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	var out relay.Advertisement
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return relay.Advertisement{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

// Download GETs /download/{hashedName} and reports whether the
// advertisement was found.
func (c *Client) Download(hashedName string) (relay.Advertisement, bool, error) {
	resp, err := c.http.Get(c.baseURL + "/download/" + hashedName)
	if err != nil {
		return relay.Advertisement{}, false, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	var out relay.Advertisement
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return relay.Advertisement{}, false, fmt.Errorf("decode download response: %w", err)
	}
	return out, resp.StatusCode == http.StatusOK, nil
}

// DownloadSuccess POSTs /download_success/{hashedName}, causing the
// relay to delete the advertisement. Failure is non-fatal to the
// caller: the transfer itself already completed.
func (c *Client) DownloadSuccess(hashedName string) error {
	resp, err := c.http.Post(c.baseURL+"/download_success/"+hashedName, "application/json", nil)
	if err != nil {
		return fmt.Errorf("download_success: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
