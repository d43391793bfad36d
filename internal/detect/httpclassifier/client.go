// Package httpclassifier is a detect.Classifier backed by one or more HTTP
// classifier services. Each service exposes POST /classify taking the raw
// text and answering {"secrets": bool, "findings": [...]}.
package httpclassifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gonkalabs/pdfguard/internal/detect"
	"github.com/gonkalabs/pdfguard/internal/signer"
)

// Options configures a Client.
type Options struct {
	URLs []string
	// Timeout bounds a single endpoint attempt. Zero means no per-attempt
	// limit beyond the caller's context.
	Timeout time.Duration
	// Signer, when set, signs every request body.
	Signer *signer.Signer
}

// Client calls classifier endpoints with failover.
type Client struct {
	pool   *Pool
	signer *signer.Signer
	http   *http.Client
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	pool, err := NewPool(opts.URLs)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:   pool,
		signer: opts.Signer,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type classifyResponse struct {
	Secrets  bool          `json:"secrets"`
	Findings []wireFinding `json:"findings"`
}

type wireFinding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Category string `json:"category"`
	Severity string `json:"severity"`
}

// errRetryable marks a failure that moves on to the next endpoint.
var errRetryable = errors.New("endpoint unavailable")

// Classify sends text to each endpoint in turn until one answers. When every
// endpoint is down the error wraps detect.ErrClassifierUnavailable.
func (c *Client) Classify(ctx context.Context, text string) (detect.Classification, error) {
	payload := []byte(text)
	var lastErr error
	for attempt, ep := range c.pool.Round() {
		res, err := c.classifyAt(ctx, ep, payload)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return detect.Classification{}, fmt.Errorf("httpclassifier: %w", ctx.Err())
		}
		if !errors.Is(err, errRetryable) {
			return detect.Classification{}, err
		}
		slog.Warn("classifier: endpoint failed, trying next", "attempt", attempt+1, "endpoint", ep, "err", err)
		lastErr = err
	}
	return detect.Classification{}, fmt.Errorf("httpclassifier: %w: %v", detect.ErrClassifierUnavailable, lastErr)
}

func (c *Client) classifyAt(ctx context.Context, ep string, payload []byte) (detect.Classification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep+"/classify", bytes.NewReader(payload))
	if err != nil {
		return detect.Classification{}, fmt.Errorf("httpclassifier: request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		c.signer.SignRequest(req, payload)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return detect.Classification{}, fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return detect.Classification{}, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return detect.Classification{}, fmt.Errorf("httpclassifier: status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}

	var body classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return detect.Classification{}, fmt.Errorf("httpclassifier: decode: %w", err)
	}

	out := detect.Classification{Secrets: body.Secrets}
	for _, f := range body.Findings {
		if f.Value == "" {
			continue
		}
		out.Findings = append(out.Findings, detect.Finding{
			Type:     f.Type,
			Value:    f.Value,
			Category: f.Category,
			Severity: detect.Severity(f.Severity),
		})
	}
	return out, nil
}
