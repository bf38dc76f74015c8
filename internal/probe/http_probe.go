package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPProbe issues a GET against a health endpoint. Any 2xx or 3xx status is
// healthy; everything else (including connection failures and deadline
// expiry) is unhealthy. The request honors the context deadline so a stalled
// endpoint can never block the supervision loop.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func (p HTTPProbe) Check(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, p.URL)
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode}
}

func (p HTTPProbe) Describe() string { return "http:" + p.URL }
