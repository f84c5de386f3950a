// Package remote speaks to the authoritative car store: CRUD over HTTP and
// a realtime push channel over WebSocket.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cobzariu/CarApp/internal/logging"
	"github.com/Cobzariu/CarApp/internal/models"
)

const (
	carPath        = "/api/car"
	defaultTimeout = 30 * time.Second
)

// Client is the CRUD surface of the remote store. Every call fails with a
// plain error when the network is unreachable or the server rejects the
// request; failures carry no partial effect.
type Client interface {
	List(ctx context.Context, token string) ([]models.Car, error)
	Create(ctx context.Context, token string, car *models.Car) (*models.Car, error)
	Update(ctx context.Context, token string, car *models.Car) (*models.Car, error)
	Erase(ctx context.Context, token string, car *models.Car) error
	GetByID(ctx context.Context, token, id string) (*models.Car, error)

	// Probe reports whether the server is reachable at all. Any HTTP
	// response counts as reachable; only transport failures count against.
	Probe(ctx context.Context) error
}

// HTTPClient implements Client against the REST surface in the project's
// protocol: GET/POST /api/car, PUT/DELETE /api/car/{id}, bearer token auth.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

func WithTimeout(timeout time.Duration) Option {
	return func(h *HTTPClient) { h.httpClient.Timeout = timeout }
}

func WithLogger(l logging.Logger) Option {
	return func(h *HTTPClient) { h.logger = l }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		h.logger.Warn(ctx, "server rejected request",
			"method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, string(data))
	}

	return data, nil
}

func (h *HTTPClient) List(ctx context.Context, token string) ([]models.Car, error) {
	data, err := h.doRequest(ctx, http.MethodGet, carPath, token, nil)
	if err != nil {
		return nil, err
	}
	var cars []models.Car
	if err := json.Unmarshal(data, &cars); err != nil {
		return nil, fmt.Errorf("failed to unmarshal car list: %w", err)
	}
	return cars, nil
}

func (h *HTTPClient) Create(ctx context.Context, token string, car *models.Car) (*models.Car, error) {
	data, err := h.doRequest(ctx, http.MethodPost, carPath, token, car)
	if err != nil {
		return nil, err
	}
	return decodeCar(data)
}

func (h *HTTPClient) Update(ctx context.Context, token string, car *models.Car) (*models.Car, error) {
	data, err := h.doRequest(ctx, http.MethodPut, carPath+"/"+car.ID, token, car)
	if err != nil {
		return nil, err
	}
	return decodeCar(data)
}

func (h *HTTPClient) Erase(ctx context.Context, token string, car *models.Car) error {
	_, err := h.doRequest(ctx, http.MethodDelete, carPath+"/"+car.ID, token, nil)
	return err
}

func (h *HTTPClient) GetByID(ctx context.Context, token, id string) (*models.Car, error) {
	data, err := h.doRequest(ctx, http.MethodGet, carPath+"/"+id, token, nil)
	if err != nil {
		return nil, err
	}
	return decodeCar(data)
}

func (h *HTTPClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.baseURL+carPath, nil)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func decodeCar(data []byte) (*models.Car, error) {
	var car models.Car
	if err := json.Unmarshal(data, &car); err != nil {
		return nil, fmt.Errorf("failed to unmarshal car: %w", err)
	}
	return &car, nil
}
