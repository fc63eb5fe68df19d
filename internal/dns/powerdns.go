// Package dns implements the PowerDNS authoritative API client used to
// replace the managed record's value set.
package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/user/gwdns/internal/util"
)

// APIError is a non-2xx response from the PowerDNS API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("powerdns api status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying. Server-side
// errors are; definitive rejections (4xx, auth) are not.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// Client talks to one zone of a PowerDNS server.
type Client struct {
	baseURL    string
	apiKey     string
	serverID   string
	zone       string
	recordName string
	ttl        int

	maxRetries int
	backoff    time.Duration

	httpClient *http.Client
}

// NewClient creates a client from configuration.
func NewClient(cfg *util.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		serverID:   cfg.ServerID,
		zone:       cfg.Zone,
		recordName: cfg.RecordName,
		ttl:        cfg.TTL,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
	}
}

// rrset is one record set in a PowerDNS PATCH request.
type rrset struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	TTL        int      `json:"ttl"`
	ChangeType string   `json:"changetype"`
	Records    []record `json:"records"`
}

type record struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

// ReplaceRecords replaces the full value set of the managed record: the A
// rrset with the v4 addresses and the AAAA rrset with the v6 addresses.
// An empty list replaces the rrset with an empty set, which removes it;
// total outage is reflected, never masked by stale data. Transient
// failures (network, 5xx) are retried with backoff; definitive
// rejections are returned immediately.
func (c *Client) ReplaceRecords(ctx context.Context, v4, v6 []netip.Addr) error {
	body, err := json.Marshal(map[string][]rrset{
		"rrsets": {
			c.rrsetFor("A", v4),
			c.rrsetFor("AAAA", v6),
		},
	})
	if err != nil {
		return fmt.Errorf("encode rrsets: %w", err)
	}

	url := fmt.Sprintf("%s/servers/%s/zones/%s", c.baseURL, c.serverID, c.zone)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			util.Info("Retrying DNS update (attempt %d/%d)", attempt, c.maxRetries)
			select {
			case <-time.After(c.backoff * time.Duration(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.patch(ctx, url, body)
		if err == nil {
			return nil
		}

		if apiErr, ok := err.(*APIError); ok && !apiErr.Transient() {
			return err
		}
		util.Warn("DNS update attempt %d failed: %v", attempt, err)
		lastErr = err
	}

	return fmt.Errorf("dns update failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) patch(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("powerdns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	return nil
}

func (c *Client) rrsetFor(rtype string, addrs []netip.Addr) rrset {
	records := make([]record, 0, len(addrs))
	for _, a := range addrs {
		records = append(records, record{Content: a.String()})
	}
	return rrset{
		Name:       c.recordName,
		Type:       rtype,
		TTL:        c.ttl,
		ChangeType: "REPLACE",
		Records:    records,
	}
}
