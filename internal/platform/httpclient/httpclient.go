package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	DefaultTimeout = 10 * time.Second
)

// ErrCircuitOpen se devuelve mientras el breaker está abierto (el upstream viene fallando).
var ErrCircuitOpen = errors.New("httpclient: circuit open")

// Client envuelve *http.Client con helpers JSON y un circuit breaker
// para no martillar endpoints caídos desde los sweeps.
type Client struct {
	HTTP    *http.Client
	breaker *gobreaker.CircuitBreaker[int]
}

type Options struct {
	Timeout time.Duration
	// Transport opcional (tests).
	Transport http.RoundTripper
	// Name identifica al breaker en logs/estado.
	Name string
	// ConsecutiveFailures antes de abrir el breaker. Default 5.
	ConsecutiveFailures uint32
	// OpenTimeout: cuánto queda abierto antes de pasar a half-open. Default 30s.
	OpenTimeout time.Duration
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := opts.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "httpclient"
	}
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// Un 4xx es culpa del request, no del upstream: no cuenta como falla.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var he *HTTPError
			if errors.As(err, &he) {
				return he.StatusCode < 500
			}
			return false
		},
	})

	return &Client{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: tr,
		},
		breaker: cb,
	}
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// StatusCode devuelve el status de un *HTTPError envuelto, o 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// PostJSON envía `in` como JSON a una URL absoluta y descarta el body de respuesta.
// Retorna error si status no es 2xx o si el breaker está abierto.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in any) error {
	if c == nil || c.HTTP == nil {
		return errors.New("httpclient: nil client")
	}
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("httpclient: invalid url %q", url)
	}

	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("httpclient: marshal json: %w", err)
	}

	_, err = c.breaker.Execute(func() (int, error) {
		return c.do(ctx, url, headers, b)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("httpclient: new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return resp.StatusCode, nil
}

// State expone el estado del breaker (closed/half-open/open).
func (c *Client) State() string {
	return c.breaker.State().String()
}
