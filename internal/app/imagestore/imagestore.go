// Package imagestore abstracts the external photo hosting service.
package imagestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velora-dev/velora/pkg/logger"
)

// Transform describes the server-side crop applied on upload.
type Transform struct {
	Width   int
	Height  int
	Crop    string
	Gravity string
}

// ProfileTransform is the square face crop applied to every profile photo.
var ProfileTransform = Transform{Width: 500, Height: 500, Crop: "fill", Gravity: "face"}

// Store uploads and destroys hosted images.
type Store interface {
	// Upload stores the image and returns its serving URL and the host's
	// public id.
	Upload(ctx context.Context, r io.Reader, filename string, t Transform) (url, publicID string, err error)
	// Destroy removes the hosted image.
	Destroy(ctx context.Context, publicID string) error
}

// HTTPStore talks to an image host over its HTTP upload API.
type HTTPStore struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPStore constructs a store using the provided endpoint.
func NewHTTPStore(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPStore, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("image store endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse image store endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("imagestore")
	}
	return &HTTPStore{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

var _ Store = (*HTTPStore)(nil)

func (s *HTTPStore) Upload(ctx context.Context, r io.Reader, filename string, t Transform) (string, string, error) {
	publicID := uuid.NewString()

	body := &strings.Builder{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", "", fmt.Errorf("copy upload body: %w", err)
	}
	fields := map[string]string{
		"public_id": publicID,
		"width":     strconv.Itoa(t.Width),
		"height":    strconv.Itoa(t.Height),
		"crop":      t.Crop,
		"gravity":   t.Gravity,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", "", fmt.Errorf("write upload field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("finish upload form: %w", err)
	}

	uploadURL := s.endpoint.JoinPath("upload")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL.String(), strings.NewReader(body.String()))
	if err != nil {
		return "", "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("upload status %d", resp.StatusCode)
	}

	var payload struct {
		URL      string `json:"url"`
		PublicID string `json:"public_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.PublicID == "" {
		payload.PublicID = publicID
	}

	s.log.WithField("public_id", payload.PublicID).Debug("image uploaded")
	return payload.URL, payload.PublicID, nil
}

func (s *HTTPStore) Destroy(ctx context.Context, publicID string) error {
	destroyURL := s.endpoint.JoinPath("destroy", publicID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, destroyURL.String(), nil)
	if err != nil {
		return fmt.Errorf("build destroy request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("destroy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("destroy status %d", resp.StatusCode)
	}

	s.log.WithField("public_id", publicID).Debug("image destroyed")
	return nil
}
