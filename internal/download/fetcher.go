// Package download retrieves the agent package from the hosted service.
//
// The fetch is a two-step sequence: an authenticated request against the
// package-listing endpoint for the latest win7-x64 package, then a
// streamed download of its downloadUrl to a unique temp file. The whole
// sequence retries as a unit under a fixed-delay policy.
package download

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// basicAuthUser is the synthetic username paired with the personal
	// access token in the Basic auth header. The service ignores the
	// username; only the token matters.
	basicAuthUser = "installer"

	// packageEndpoint lists agent packages; $top=1 requests the latest.
	packageEndpoint = "/_apis/distributedtask/packages/agent/win7-x64?$top=1&api-version=3.0"
)

// RetryPolicy bounds the fetch retry loop. Retries counts additional
// attempts after the first; Delay is the fixed pause between attempts.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

// DefaultRetryPolicy matches the provisioning contract: 3 retries with
// a constant 1s pause, 4 attempts worst case.
var DefaultRetryPolicy = RetryPolicy{Retries: 3, Delay: time.Second}

// DownloadError is returned once the retry budget is exhausted. It
// carries the last underlying failure.
type DownloadError struct {
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("agent package download failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Fetcher downloads the agent archive.
type Fetcher struct {
	client *retryablehttp.Client
	auth   string
	policy RetryPolicy
}

// NewFetcher builds a Fetcher authenticating with the given token.
func NewFetcher(token string, policy RetryPolicy) *Fetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	// Attempt counting belongs to the sequence-level loop in Fetch, not
	// to per-request retries.
	client.RetryMax = 0
	client.HTTPClient.Timeout = 5 * time.Minute // generous for the agent zip

	creds := base64.StdEncoding.EncodeToString([]byte(basicAuthUser + ":" + token))
	return &Fetcher{
		client: client,
		auth:   "Basic " + creds,
		policy: policy,
	}
}

// Fetch retrieves the latest agent package and returns the local path
// of the downloaded archive. The listing-plus-download sequence is
// retried as a unit until the policy's budget is spent.
func (f *Fetcher) Fetch(ctx context.Context, serverURL string) (string, error) {
	attempts := f.policy.Retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		path, err := f.fetchOnce(ctx, serverURL)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if i < attempts-1 {
			log.Printf("[download] Attempt %d/%d failed: %v, retrying in %v", i+1, attempts, err, f.policy.Delay)
			time.Sleep(f.policy.Delay)
		}
	}
	return "", &DownloadError{Attempts: attempts, Err: lastErr}
}

type packageInfo struct {
	DownloadURL string `json:"downloadUrl"`
}

func (f *Fetcher) fetchOnce(ctx context.Context, serverURL string) (string, error) {
	pkg, err := f.latestPackage(ctx, serverURL)
	if err != nil {
		return "", err
	}
	if pkg.DownloadURL == "" {
		return "", fmt.Errorf("package listing has no downloadUrl")
	}
	return f.downloadArchive(ctx, pkg.DownloadURL)
}

// latestPackage queries the listing endpoint. The value field is a list
// on current service versions but has been observed as a bare object.
func (f *Fetcher) latestPackage(ctx context.Context, serverURL string) (*packageInfo, error) {
	body, err := f.get(ctx, serverURL+packageEndpoint)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var listing struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode package listing: %w", err)
	}
	if len(listing.Value) == 0 {
		return nil, fmt.Errorf("package listing has no value field")
	}

	var pkgs []packageInfo
	if err := json.Unmarshal(listing.Value, &pkgs); err == nil {
		if len(pkgs) == 0 {
			return nil, fmt.Errorf("package listing is empty")
		}
		return &pkgs[0], nil
	}

	var pkg packageInfo
	if err := json.Unmarshal(listing.Value, &pkg); err != nil {
		return nil, fmt.Errorf("decode package entry: %w", err)
	}
	return &pkg, nil
}

// downloadArchive streams the package to a freshly created temp file.
// The file is left in place for the extractor; cleanup is the OS's
// temp-dir policy.
func (f *Fetcher) downloadArchive(ctx context.Context, url string) (string, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir, err := os.MkdirTemp("", "vsts-agent-"+uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	dest := filepath.Join(dir, "agent.zip")

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, body)
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("stream archive: %w", err)
	}

	log.Printf("[download] Downloaded %d bytes to %s", n, dest)
	return dest, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", f.auth)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}
