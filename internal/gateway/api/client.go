package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mobile-home-delivery/internal/domain"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code     int
	Message  string
	Reason   string
	Current  int
	Required int
	Missing  []string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Permanent reports whether the server refused the request for good.
// 401 means the agent itself is misconfigured and is not counted.
func (e *StatusError) Permanent() bool {
	if e.Code < 400 || e.Code >= 500 {
		return false
	}
	switch e.Code {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return true
}

// Client talks to the delivery HTTP API on behalf of one driver.
type Client struct {
	baseURL  string
	driverID int64
	http     *http.Client
}

// NewClient creates a Client. A non-positive timeout means DefaultTimeout.
func NewClient(baseURL string, driverID int64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		driverID: driverID,
		http:     &http.Client{Timeout: timeout},
	}
}

// SendPoint uploads a single GPS point.
func (c *Client) SendPoint(ctx context.Context, p domain.GPSPoint) error {
	return c.do(ctx, http.MethodPost, deliveryPath(p.DeliveryID, "gps"), jsonBody(toPayload(p)), nil)
}

// SendBatch uploads a batch of GPS points.
func (c *Client) SendBatch(ctx context.Context, b domain.GPSBatch) error {
	body := batchPayload{StartedAt: b.StartedAt, EndedAt: b.EndedAt, Points: make([]pointPayload, 0, len(b.Points))}
	for _, p := range b.Points {
		body.Points = append(body.Points, toPayload(p))
	}
	return c.do(ctx, http.MethodPost, deliveryPath(b.DeliveryID, "gps/batch"), jsonBody(body), nil)
}

// Transition asks the server to change the delivery status.
func (c *Client) Transition(ctx context.Context, req TransitionRequest) (*TransitionResponse, error) {
	var out TransitionResponse
	if err := c.do(ctx, http.MethodPost, deliveryPath(req.DeliveryID, "transitions"), jsonBody(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPhoto sends an image as multipart form data.
func (c *Client) UploadPhoto(ctx context.Context, up PhotoUpload) (*PhotoResponse, error) {
	var out PhotoResponse
	if err := c.do(ctx, http.MethodPost, deliveryPath(up.DeliveryID, "photos"), multipartBody(up), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quality fetches the quality report of a delivery.
func (c *Client) Quality(ctx context.Context, deliveryID int64) (*QualityReport, error) {
	var out QualityReport
	if err := c.do(ctx, http.MethodGet, deliveryPath(deliveryID, "quality"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type bodyFunc func() (io.Reader, string, error)

func jsonBody(v any) bodyFunc {
	return func() (io.Reader, string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

func multipartBody(up PhotoUpload) bodyFunc {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fields := map[string]string{"category": up.Category, "caption": up.Caption}
		if !up.TakenAt.IsZero() {
			fields["taken_at"] = up.TakenAt.UTC().Format(time.RFC3339)
		}
		if up.Location != nil {
			fields["latitude"] = strconv.FormatFloat(up.Location.Latitude, 'f', -1, 64)
			fields["longitude"] = strconv.FormatFloat(up.Location.Longitude, 'f', -1, 64)
			fields["accuracy"] = strconv.FormatFloat(up.Location.Accuracy, 'f', -1, 64)
		}
		for k, v := range fields {
			if v == "" {
				continue
			}
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		name := up.FileName
		if name == "" {
			name = "photo.jpg"
		}
		fw, err := w.CreateFormFile("file", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(up.Data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body bodyFunc, out any) error {
	var (
		rd          io.Reader
		contentType string
	)
	if body != nil {
		var err error
		if rd, contentType, err = body(); err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Driver-ID", strconv.FormatInt(c.driverID, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		if body.Error != "" {
			se.Message = body.Error
		}
		se.Reason = body.Reason
		se.Current = body.Current
		se.Required = body.Required
		se.Missing = body.Missing
	}
	return se
}

// IsRejected reports whether err is a delivery rule rejection.
func IsRejected(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity
}

func deliveryPath(id int64, suffix string) string {
	return "/deliveries/" + url.PathEscape(strconv.FormatInt(id, 10)) + "/" + suffix
}

func toPayload(p domain.GPSPoint) pointPayload {
	return pointPayload{
		ID:         p.ID.String(),
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		Speed:      p.Speed,
		Heading:    p.Heading,
		Battery:    p.Battery,
		RecordedAt: p.RecordedAt,
	}
}
