// Package studio is the HTTP client for the portrait composition provider.
// The provider is a black box: it takes an instruction plus source images and
// returns raw image bytes, and its failures surface as opaque strings.
package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.portrait-studio.dev/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "portrait-compose-1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      model,
	}
}

type composeRequest struct {
	Model       string         `json:"model"`
	Instruction string         `json:"instruction"`
	Images      []composeImage `json:"images"`
}

type composeImage struct {
	Name string `json:"name,omitempty"`
	MIME string `json:"mime_type"`
	Data string `json:"data"`
}

type composeResponse struct {
	Image   string `json:"image"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Compose sends the instruction and source images to the provider and returns
// the generated image bytes. The first image is the reference artwork, the
// rest are the pet photos, in submission order.
func (c *Client) Compose(ctx context.Context, instruction string, images []domain.InputAsset) ([]byte, error) {
	if c == nil {
		return nil, errors.New("studio client not configured")
	}
	if c.token == "" {
		return nil, errors.New("studio: API key is missing")
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, errors.New("studio: instruction required")
	}
	if len(images) == 0 {
		return nil, errors.New("studio: at least one image required")
	}

	payload := composeRequest{Model: c.model, Instruction: instruction}
	for _, img := range images {
		if len(img.Data) == 0 {
			return nil, fmt.Errorf("studio: image %q has no data", img.Name)
		}
		payload.Images = append(payload.Images, composeImage{
			Name: img.Name,
			MIME: img.MIME,
			Data: base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/compositions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out composeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("studio: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Message != "" {
			return nil, fmt.Errorf("studio error: %s (%s)", out.Message, out.Code)
		}
		return nil, fmt.Errorf("studio: http %d", resp.StatusCode)
	}
	if strings.TrimSpace(out.Image) == "" {
		if out.Message != "" {
			return nil, fmt.Errorf("studio error: %s (%s)", out.Message, out.Code)
		}
		return nil, errors.New("studio: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("studio: malformed image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("studio: empty image payload")
	}
	return data, nil
}
