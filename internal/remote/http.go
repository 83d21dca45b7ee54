package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/KhylleVillasurda/Notequarry/internal/logger"
	"github.com/KhylleVillasurda/Notequarry/models"
)

// RevisionHeader carries the blob revision on GET and PUT responses.
const RevisionHeader = "X-Blob-Revision"

// putResponse is the JSON body of a successful PUT.
type putResponse struct {
	Revision string `json:"revision"`
	Checksum string `json:"checksum"`
}

// HTTPBlobStore talks to a blob server over HTTP. Transient failures
// (network errors, 5xx) are retried with exponential backoff inside each
// call; exhausted retries surface as [models.ErrRemoteUnavailable] so a sync
// pass can abort cleanly and try again later.
type HTTPBlobStore struct {
	client *resty.Client
	logger *logger.Logger

	maxRetries   uint64
	retryBackoff time.Duration
}

// NewHTTPBlobStore constructs an HTTP implementation of [BlobStore]. token
// is an opaque bearer credential passed through on every request; obtaining
// it is the transport collaborator's concern.
func NewHTTPBlobStore(baseURL, token string, timeout time.Duration, log *logger.Logger) (*HTTPBlobStore, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}

	client := resty.New().
		SetBaseURL(normalized).
		SetTimeout(timeout)
	if token != "" {
		client.SetAuthToken(token)
	}

	return &HTTPBlobStore{
		client:       client,
		logger:       log,
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Put implements [BlobStore].
func (h *HTTPBlobStore) Put(ctx context.Context, id string, data []byte) (string, error) {
	var out putResponse

	err := h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(data).
			SetResult(&out).
			Put("/blobs/" + url.PathEscape(id))
		if err != nil {
			return retry.RetryableError(err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return "", err
	}

	return out.Revision, nil
}

// Get implements [BlobStore].
func (h *HTTPBlobStore) Get(ctx context.Context, id string) ([]byte, string, error) {
	var (
		body []byte
		rev  string
	)

	err := h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.client.R().
			SetContext(ctx).
			Get("/blobs/" + url.PathEscape(id))
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := classifyStatus(resp); err != nil {
			return err
		}
		body = resp.Body()
		rev = resp.Header().Get(RevisionHeader)
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return body, rev, nil
}

// List implements [BlobStore].
func (h *HTTPBlobStore) List(ctx context.Context) ([]models.BlobInfo, error) {
	var infos []models.BlobInfo

	err := h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.client.R().
			SetContext(ctx).
			SetResult(&infos).
			Get("/blobs")
		if err != nil {
			return retry.RetryableError(err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

// Delete implements [BlobStore]. A 404 is treated as success: the blob is
// gone either way, which keeps tombstone propagation idempotent.
func (h *HTTPBlobStore) Delete(ctx context.Context, id string) error {
	return h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.client.R().
			SetContext(ctx).
			Delete("/blobs/" + url.PathEscape(id))
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return nil
		}
		return classifyStatus(resp)
	})
}

func (h *HTTPBlobStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(h.maxRetries, retry.NewExponential(h.retryBackoff))

	err := retry.Do(ctx, backoff, op)
	if err == nil {
		return nil
	}
	if isTerminal(err) {
		return err
	}

	h.logger.Warn().Err(err).Str("func", "HTTPBlobStore.withRetry").Msg("remote request failed after retries")
	return fmt.Errorf("%w: %w", models.ErrRemoteUnavailable, err)
}

// statusError is a non-2xx response status carried through the retry stack,
// so callers can tell a server verdict apart from remote unavailability.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote status %d", e.code)
}

func classifyStatus(resp *resty.Response) error {
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode() >= http.StatusInternalServerError:
		return retry.RetryableError(&statusError{code: resp.StatusCode()})
	default:
		return &statusError{code: resp.StatusCode()}
	}
}

func isTerminal(err error) bool {
	// Non-retryable errors pass through as-is: 4xx statuses and ErrNotFound
	// should not be reported as remote unavailability.
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code >= http.StatusBadRequest && se.code < http.StatusInternalServerError
}

var _ BlobStore = (*HTTPBlobStore)(nil)
