// Package ipfs adapts the Kubo RPC API to the content.CAS interface.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"notary/internal/content"
)

const maxBlockSize = 32 << 20

// Client talks to a Kubo node's /api/v0 block endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(k *Client) {
		k.http = c
	}
}

func New(apiURL string, timeout time.Duration, opts ...Option) *Client {
	k := &Client{
		baseURL: strings.TrimRight(apiURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

type putResponse struct {
	Key  string `json:"Key"`
	Size int    `json:"Size"`
}

type apiError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

// Put uploads data as a raw block and returns the CID the node reports.
func (k *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("data", "block")
	if err != nil {
		return cid.Undef, err
	}
	if _, err := part.Write(data); err != nil {
		return cid.Undef, err
	}
	if err := mw.Close(); err != nil {
		return cid.Undef, err
	}

	q := url.Values{}
	q.Set("cid-codec", "raw")
	q.Set("mhtype", "sha2-256")
	q.Set("mhlen", "32")
	q.Set("pin", "true")

	resp, err := k.post(ctx, "/api/v0/block/put", q, &body, mw.FormDataContentType())
	if err != nil {
		return cid.Undef, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return cid.Undef, err
	}
	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return cid.Undef, fmt.Errorf("%w: decode block/put: %v", content.ErrUnavailable, err)
	}
	id, err := cid.Decode(out.Key)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: node returned %q", content.ErrCIDMismatch, out.Key)
	}
	return id, nil
}

// Get downloads the raw block for id and verifies its hash.
func (k *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, content.ErrInvalidCID
	}
	q := url.Values{}
	q.Set("arg", id.String())

	resp, err := k.post(ctx, "/api/v0/block/get", q, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlockSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read block: %v", content.ErrUnavailable, err)
	}
	if len(data) > maxBlockSize {
		return nil, fmt.Errorf("block %s exceeds %d bytes", id, maxBlockSize)
	}
	got, err := content.ComputeCID(data)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, content.ErrCIDMismatch
	}
	return data, nil
}

// Has reports whether the node holds id.
func (k *Client) Has(ctx context.Context, id cid.Cid) (bool, error) {
	q := url.Values{}
	q.Set("arg", id.String())
	q.Set("offline", "true")

	resp, err := k.post(ctx, "/api/v0/block/stat", q, nil, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	err = checkStatus(resp)
	switch {
	case err == nil:
		return true, nil
	case err == content.ErrNotFound:
		return false, nil
	default:
		return false, err
	}
}

func (k *Client) post(ctx context.Context, path string, q url.Values, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path+"?"+q.Encode(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := k.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", content.ErrUnavailable, err)
	}
	return resp, nil
}

// checkStatus maps Kubo error responses to content errors. Kubo reports
// missing blocks as HTTP 500 with a "not found" message.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var apiErr apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if strings.Contains(strings.ToLower(msg), "not found") {
		return content.ErrNotFound
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: kubo %d: %s", content.ErrUnavailable, resp.StatusCode, msg)
	}
	return fmt.Errorf("kubo %d: %s", resp.StatusCode, msg)
}
