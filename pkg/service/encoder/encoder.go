package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/utils/safe"
)

const (
	// DefaultModel is the encoder model requested from the service. Facenet
	// produces 128-dim embeddings, matching the default gallery dimension.
	DefaultModel = "Facenet"
	// DefaultDetector is the face detector requested from the service.
	DefaultDetector = "retinaface"
)

// Client calls a deepface-style encoder service over HTTP. The engine never
// touches pixels itself; this client is the only place images appear, and
// only as opaque bytes forwarded to the service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	model      string
	detector   string
}

var _ interfaces.Encoder = &Client{}

// Option is a functional option for the encoder client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to set timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(x *Client) {
		if httpClient != nil {
			x.httpClient = httpClient
		}
	}
}

// WithModel sets the embedding model requested from the service.
func WithModel(model string) Option {
	return func(x *Client) {
		if model != "" {
			x.model = model
		}
	}
}

// WithDetector sets the face detector requested from the service.
func WithDetector(detector string) Option {
	return func(x *Client) {
		if detector != "" {
			x.detector = detector
		}
	}
}

// New creates an encoder client for the service at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, goerr.New("encoder endpoint is required")
	}

	x := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: http.DefaultClient,
		model:      DefaultModel,
		detector:   DefaultDetector,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// representRequest for POST /represent
type representRequest struct {
	Img      string `json:"img"` // base64 encoded image
	Model    string `json:"model,omitempty"`
	Detector string `json:"detector,omitempty"`
}

// representResponse from POST /represent
type representResponse struct {
	Results []representResult `json:"results"`
}

type representResult struct {
	Embedding []float64 `json:"embedding"`
}

// Encode sends the image to the encoder service and returns one encoding
// per detected face. An image without faces yields an empty slice, not an
// error; the caller decides whether that is a problem.
func (x *Client) Encode(ctx context.Context, image []byte) ([]types.Encoding, error) {
	if len(image) == 0 {
		return nil, goerr.New("image is empty")
	}

	reqBody, err := json.Marshal(representRequest{
		Img:      base64.StdEncoding.EncodeToString(image),
		Model:    x.model,
		Detector: x.detector,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode represent request")
	}

	url := x.endpoint + "/represent"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", url))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call encoder service", goerr.V("url", url))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("encoder service returned non-OK status",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read encoder response")
	}

	var representResp representResponse
	if err := json.Unmarshal(body, &representResp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse encoder response")
	}

	encodings := make([]types.Encoding, 0, len(representResp.Results))
	for i, result := range representResp.Results {
		encoding := types.Encoding(result.Embedding)
		if err := encoding.Validate(); err != nil {
			return nil, goerr.Wrap(err, "encoder returned an invalid embedding", goerr.V("index", i))
		}
		encodings = append(encodings, encoding)
	}

	return encodings, nil
}
