package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drivewise/drivewise/internal/config"
)

// Predictor is the opaque trained model behind the recommendation adapter
type Predictor interface {
	// Predict maps an encoded feature vector to a car name
	Predict(ctx context.Context, features []float64) (string, error)
}

// Client calls the model-serving endpoint that hosts the trained classifier
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a classifier client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.ClassifierURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

var _ Predictor = (*Client)(nil)

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	CarName string `json:"carName"`
}

// Predict sends the encoded features and returns the predicted car name
func (c *Client) Predict(ctx context.Context, features []float64) (string, error) {
	payload, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debugf("Classifier response: %s", string(body))

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.CarName == "" {
		return "", fmt.Errorf("classifier returned no car name")
	}
	return parsed.CarName, nil
}
