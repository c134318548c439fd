// Package client is a typed HTTP client for the site's JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"cabinsite/cabins"
	"cabinsite/models"
	"cabinsite/reviews"
	"cabinsite/upload"
)

var (
	// ErrUnauthorized is returned for 401 answers: no admin session or a
	// failed login.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError carries the status and message of any other non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Client keeps the admin session cookie between calls.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) endpoint(parts ...string) (string, error) {
	u, err := url.JoinPath(c.baseURL, append([]string{"api"}, parts...)...)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	return u, nil
}

func id(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

// do sends a request and decodes a JSON answer into out when it is not nil.
func (c *Client) do(ctx context.Context, method string, path []string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	endpoint, err := c.endpoint(path...)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = payload.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return ErrNotFound
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Cabins

func (c *Client) ListCabins(ctx context.Context) ([]models.Cabin, error) {
	var list []models.Cabin
	if err := c.do(ctx, http.MethodGet, []string{"cabins"}, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetCabin(ctx context.Context, cabinID uint) (*models.Cabin, error) {
	var cabin models.Cabin
	if err := c.do(ctx, http.MethodGet, []string{"cabins", id(cabinID)}, nil, &cabin); err != nil {
		return nil, err
	}
	return &cabin, nil
}

func (c *Client) CreateCabin(ctx context.Context, in cabins.Input) (*models.Cabin, error) {
	var cabin models.Cabin
	if err := c.do(ctx, http.MethodPost, []string{"cabins"}, in, &cabin); err != nil {
		return nil, err
	}
	return &cabin, nil
}

// UpdateCabin replaces every field of the cabin.
func (c *Client) UpdateCabin(ctx context.Context, cabinID uint, in cabins.Input) (*models.Cabin, error) {
	var cabin models.Cabin
	if err := c.do(ctx, http.MethodPut, []string{"cabins", id(cabinID)}, in, &cabin); err != nil {
		return nil, err
	}
	return &cabin, nil
}

func (c *Client) DeleteCabin(ctx context.Context, cabinID uint) error {
	return c.do(ctx, http.MethodDelete, []string{"cabins", id(cabinID)}, nil, nil)
}

// Settings

func (c *Client) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	values := map[string]json.RawMessage{}
	if err := c.do(ctx, http.MethodGet, []string{"settings"}, nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// UpdateSettings upserts every key in values as one batch.
func (c *Client) UpdateSettings(ctx context.Context, values map[string]interface{}) error {
	return c.do(ctx, http.MethodPut, []string{"settings"}, values, nil)
}

// Admin identity

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login starts an admin session. Wrong credentials yield ErrUnauthorized.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, []string{"admin", "login"}, credentials{username, password}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, []string{"admin", "logout"}, nil, nil)
}

func (c *Client) Authenticated(ctx context.Context) (bool, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.do(ctx, http.MethodGet, []string{"admin", "session"}, nil, &out); err != nil {
		return false, err
	}
	return out.Authenticated, nil
}

func (c *Client) UpdateCredentials(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPut, []string{"admin", "credentials"}, credentials{username, password}, nil)
}

func (c *Client) AdminPath(ctx context.Context) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	if err := c.do(ctx, http.MethodGet, []string{"admin", "path"}, nil, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

func (c *Client) UpdateAdminPath(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPut, []string{"admin", "path"}, map[string]string{"path": path}, nil)
}

// Upload

// UploadImage sends r as the image form field and returns the public URL.
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, upload.FieldName, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	endpoint, err := c.endpoint("upload")
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.ImageURL, nil
}

// Reviews

// Reviews returns the approved reviews, newest first.
func (c *Client) Reviews(ctx context.Context) ([]models.Review, error) {
	var list []models.Review
	if err := c.do(ctx, http.MethodGet, []string{"reviews"}, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ReviewChallenge asks for a new arithmetic question. Its answer goes into
// reviews.Input.Captcha of the next SubmitReview call.
func (c *Client) ReviewChallenge(ctx context.Context) (string, error) {
	var out struct {
		Question string `json:"question"`
	}
	if err := c.do(ctx, http.MethodGet, []string{"reviews", "challenge"}, nil, &out); err != nil {
		return "", err
	}
	return out.Question, nil
}

func (c *Client) SubmitReview(ctx context.Context, in reviews.Input) (*models.Review, error) {
	var out struct {
		Review models.Review `json:"review"`
	}
	if err := c.do(ctx, http.MethodPost, []string{"reviews"}, in, &out); err != nil {
		return nil, err
	}
	return &out.Review, nil
}

// AllReviews lists every review, pending ones included.
func (c *Client) AllReviews(ctx context.Context) ([]models.Review, error) {
	var list []models.Review
	if err := c.do(ctx, http.MethodGet, []string{"admin", "reviews"}, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ApproveReview(ctx context.Context, reviewID uint) (*models.Review, error) {
	var review models.Review
	if err := c.do(ctx, http.MethodPut, []string{"reviews", id(reviewID), "approve"}, nil, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) DeleteReview(ctx context.Context, reviewID uint) error {
	return c.do(ctx, http.MethodDelete, []string{"reviews", id(reviewID)}, nil, nil)
}
