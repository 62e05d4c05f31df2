package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier posts the confirmation payload to the external email-sending
// function. The function owns templating and the provider call; this client
// only cares about 2xx vs not.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (n *HTTPNotifier) SendConfirmation(ctx context.Context, input SendConfirmationInput) error {
	body, err := json.Marshal(input)

	if err != nil {
		return fmt.Errorf("encode confirmation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)

	if err != nil {
		return err
	}

	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email function returned %d", resp.StatusCode)
	}

	return nil
}
