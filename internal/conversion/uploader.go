package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// HTTPUploader posts conversion payloads to the external reporting
// endpoint.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
}

// NewHTTPUploader returns an uploader for the given endpoint URL.
func NewHTTPUploader(endpoint string, timeout time.Duration) *HTTPUploader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPUploader{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload validates and posts one payload. Validation here is redundant
// with the gate's pre-pass on purpose.
func (u *HTTPUploader) Upload(ctx context.Context, payload models.ConversionPayload) error {
	if err := Validate(payload); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("post conversion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("conversion endpoint returned %s: %s", resp.Status, msg)
	}

	return nil
}

// LogUploader validates payloads and logs them instead of calling an
// external endpoint. Used for dry runs and local development.
type LogUploader struct {
	logger *slog.Logger
}

// NewLogUploader returns a dry-run uploader.
func NewLogUploader() *LogUploader {
	return &LogUploader{
		logger: slog.Default().With(slog.String("component", "conversion-dryrun")),
	}
}

// Upload validates the payload and logs it.
func (u *LogUploader) Upload(ctx context.Context, payload models.ConversionPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(payload); err != nil {
		return err
	}

	u.logger.Info("would upload conversion",
		logging.OrderID(payload.OrderID),
		slog.String("gclid", payload.Gclid),
		slog.Float64("value", payload.ConversionValue),
		slog.String("currency", payload.CurrencyCode))
	return nil
}
