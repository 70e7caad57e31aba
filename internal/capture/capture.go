// Package capture pulls single JPEG frames from the webcam's HTTP endpoints.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // registers the JPEG decoder for DecodeConfig
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/smazurov/camrelay/internal/version"
)

// DefaultTimeout bounds one capture.
const DefaultTimeout = 10 * time.Second

// maxFrameSize caps a single frame read.
const maxFrameSize = 16 << 20

// Source describes the webcam endpoints.
type Source struct {
	SnapshotURL string
	StreamURL   string
	// ForceStreamURL reads the first frame of the MJPEG stream even when a
	// snapshot URL is configured.
	ForceStreamURL bool
}

// Client captures frames over HTTP.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a capture client. A zero timeout selects DefaultTimeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// CaptureJPEG returns one JPEG frame from the source.
func (c *Client) CaptureJPEG(ctx context.Context, src Source) ([]byte, error) {
	url := src.SnapshotURL
	if src.ForceStreamURL || url == "" {
		url = src.StreamURL
	}
	if url == "" {
		return nil, errors.New("no snapshot or stream url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	frame, err := readFrame(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Captured frame", "url", url, "bytes", len(frame))
	return frame, nil
}

// readFrame extracts the first JPEG from a snapshot or MJPEG response.
func readFrame(resp *http.Response) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	}

	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		return nil, errors.New("multipart stream without boundary")
	}

	mr := multipart.NewReader(resp.Body, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, fmt.Errorf("failed to read stream part: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(part, maxFrameSize))
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read stream frame: %w", err)
		}
		if len(data) > 0 {
			return data, nil
		}
	}
}

// Dimensions decodes the width and height of a JPEG without decoding pixels.
func Dimensions(jpeg []byte) (width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(jpeg))
	if err != nil {
		return 0, 0, err
	}
	if format != "jpeg" {
		return 0, 0, fmt.Errorf("unexpected image format %q", format)
	}
	return cfg.Width, cfg.Height, nil
}
