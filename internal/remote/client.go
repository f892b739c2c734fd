// Package remote is the HTTP transport to the remote store: it pushes
// pending writes, fetches the authoritative snapshot, and fetches the
// variant catalog.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Failure classes. Request errors wrap ErrTransient or ErrPermanent, or a
// context error. ErrUnauthorized is a permanent failure.
var (
	ErrTransient    = errors.New("transient remote failure")
	ErrPermanent    = errors.New("permanent remote failure")
	ErrUnauthorized = fmt.Errorf("unauthorized: %w", ErrPermanent)
)

// ErrNoCatalogURL is returned by Variants when no catalog URL is configured.
var ErrNoCatalogURL = errors.New("no catalog url configured")

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap returns the failure class of the status code.
func (e *StatusError) Unwrap() error {
	return classify(e.StatusCode)
}

func classify(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Config configures a Client.
type Config struct {
	// URL is the base URL of the remote store.
	URL string

	// CatalogURL serves the variant catalog. Optional.
	CatalogURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds each request. Zero keeps the HTTP client's own.
	Timeout time.Duration

	// Location is attached to every batched update.
	Location map[string]any

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// PushResult reports the fate of each pushed delta.
type PushResult struct {
	TraceID  string
	Applied  []uint64
	Rejected []Rejection
}

// Rejection is a delta the receiver refused permanently.
type Rejection struct {
	Seq    uint64
	Reason string
}

// Client talks to the remote store.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL != "" {
		if _, err := url.ParseRequestURI(cfg.URL); err != nil {
			return nil, fmt.Errorf("invalid remote url: %w", err)
		}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{config: cfg, http: hc}, nil
}

// Actor returns the user the configured token speaks for.
func (c *Client) Actor() (string, error) {
	return ActorFromToken(c.config.Token)
}

// ActorFromToken reads the username from a bearer token without verifying
// it. The result scopes merges to the signed-in user's records.
func ActorFromToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return "", err
	}
	return claims.Actor(), nil
}

// Push sends deltas in batches of at most MaxUpdatesPerRequest. On failure
// the result covers the batches sent before it.
func (c *Client) Push(ctx context.Context, deltas []queue.Delta) (PushResult, error) {
	var result PushResult
	for start := 0; start < len(deltas); start += MaxUpdatesPerRequest {
		end := min(start+MaxUpdatesPerRequest, len(deltas))
		chunk := deltas[start:end]

		resp, err := c.pushChunk(ctx, chunk)
		if err != nil {
			return result, err
		}
		result.TraceID = resp.TraceID

		rejected := make(map[string]string, len(resp.Rejected))
		for _, r := range resp.Rejected {
			rejected[r.InstanceID] = r.Reason
		}
		for _, d := range chunk {
			if reason, ok := rejected[d.InstanceID.String()]; ok {
				result.Rejected = append(result.Rejected, Rejection{Seq: d.Seq, Reason: reason})
				continue
			}
			result.Applied = append(result.Applied, d.Seq)
		}
	}
	return result, nil
}

func (c *Client) pushChunk(ctx context.Context, chunk []queue.Delta) (*BatchResponse, error) {
	body := BatchRequest{
		Location:       c.config.Location,
		PokemonUpdates: make([]Update, 0, len(chunk)),
		TradeUpdates:   []json.RawMessage{},
	}
	for _, d := range chunk {
		body.PokemonUpdates = append(body.PokemonUpdates, EncodeDelta(d))
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w: %w", ErrPermanent, err)
	}

	target, err := c.endpoint("push", "batchedUpdates")
	if err != nil {
		return nil, err
	}

	var resp BatchResponse
	if err := c.do(ctx, "push", http.MethodPost, target, bytes.NewReader(data), func(r *http.Response) error {
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode push response: %w: %w", ErrTransient, err)
		}
		if resp.TraceID == "" {
			resp.TraceID = r.Header.Get("X-Trace-ID")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchSnapshot downloads the authoritative snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) (instance.Snapshot, error) {
	target, err := c.endpoint("fetch snapshot", "instances")
	if err != nil {
		return instance.Snapshot{}, err
	}

	snap := instance.NewSnapshot()
	err = c.do(ctx, "fetch snapshot", http.MethodGet, target, nil, func(r *http.Response) error {
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return fmt.Errorf("decode snapshot: %w: %w", ErrTransient, err)
		}
		return nil
	})
	if err != nil {
		return instance.Snapshot{}, err
	}
	if snap.Instances == nil {
		snap = instance.NewSnapshot()
	}
	return snap, nil
}

// Variants implements variant.Source by downloading the catalog.
func (c *Client) Variants(ctx context.Context) ([]variant.Variant, error) {
	if c.config.CatalogURL == "" {
		return nil, ErrNoCatalogURL
	}
	var variants []variant.Variant
	err := c.do(ctx, "fetch catalog", http.MethodGet, c.config.CatalogURL, nil, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("read catalog: %w: %w", ErrTransient, err)
		}
		variants, err = variant.Decode(data, catalogFormat(r, c.config.CatalogURL))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return nil
	})
	return variants, err
}

func catalogFormat(r *http.Response, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		if strings.Contains(mediaType, "yaml") {
			return "yaml"
		}
		if strings.Contains(mediaType, "json") {
			return "json"
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		switch ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext {
		case "yaml", "yml":
			return ext
		}
	}
	return "json"
}

func (c *Client) endpoint(op, name string) (string, error) {
	if c.config.URL == "" {
		return "", fmt.Errorf("%s: %w: no remote url configured", op, ErrPermanent)
	}
	return strings.TrimRight(c.config.URL, "/") + "/" + name, nil
}

// do runs one request and hands a 2xx response to decode.
func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader, decode func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrPermanent, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return decode(resp)
}

// errorMessage extracts the "error" field of a JSON error body, or the raw
// text.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
