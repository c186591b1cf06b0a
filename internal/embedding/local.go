package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LocalClient talks to a local model server (Ollama-compatible
// /api/embed). The tier is advertised as fully offline, so the HTTP
// client it uses refuses to dial anything but loopback: an accidental
// non-local URL fails at dial time instead of leaking a network call.
type LocalClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocalClient creates a LocalClient for the given base URL and model.
func NewLocalClient(baseURL, model string) *LocalClient {
	return &LocalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: loopbackOnlyClient(30 * time.Second),
	}
}

// loopbackOnlyClient builds an HTTP client whose dialer rejects
// non-loopback addresses.
func loopbackOnlyClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("local embedding: invalid address %q: %w", addr, err)
			}
			if !isLoopbackHost(host) {
				return nil, fmt.Errorf("local embedding: refusing non-loopback address %q", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateLocalURL rejects configuration pointing the local tier at a
// remote host before any request is made.
func ValidateLocalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("local embedding URL: %w", err)
	}
	if !isLoopbackHost(u.Hostname()) {
		return fmt.Errorf("local embedding URL %q is not loopback", raw)
	}
	return nil
}

type localEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text.
func (c *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var result localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return result.Embeddings[0], nil
}
