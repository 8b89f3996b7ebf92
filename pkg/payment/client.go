package payment

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

	"github.com/example/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// apiClient is a JSON-over-HTTP client guarded by a circuit breaker. Only
// transport failures and 5xx responses count against the breaker.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func newAPIClient(name string, cfg config.GatewayClientConfig, logger *zap.Logger) *apiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.code < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment gateway breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &apiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
		}
		return data, nil
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			return fmt.Errorf("%w: %s %s: %v", ErrRejected, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, method, path, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid response from %s: %v", ErrGatewayUnavailable, path, err)
	}
	return nil
}
