// Package places is an HTTP client for the imagery service that supplies
// place photographs. It performs the two remote steps of photo resolution:
// listing the photos of a place and verifying that a photo's media URL can be
// fetched.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/apierror"
)

var log = logging.Logger("places")

// DefaultBaseURL is the base of the imagery service API.
const DefaultBaseURL = "https://places.googleapis.com/v1"

const (
	photosPath = "photos"
	mediaPath  = "media"

	headerAPIKey    = "X-Goog-Api-Key"
	headerFieldMask = "X-Goog-FieldMask"
	photosFieldMask = "photos.name"

	// Only the head of a media response is needed to verify it.
	maxVerifyRead = 64 << 10

	maxPlaceIDLen = 512
)

// ErrInvalidPlaceID is returned for a place id that is not a single path
// segment of letters, digits, '-' and '_'.
var ErrInvalidPlaceID = errors.New("invalid place id")

// Endpoint names reported by apierror.Error.Endpoint.
const (
	EndpointPhotos = "photos"
	EndpointMedia  = "media"
)

// Photo is one photo entry of a place's metadata.
type Photo struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"widthPx,omitempty"`
	HeightPx int    `json:"heightPx,omitempty"`
}

// photosResponse is the body of a metadata response.
type photosResponse struct {
	Photos []Photo `json:"photos"`
}

// Client is an http client for the imagery service.
type Client struct {
	c         *http.Client
	baseURL   *url.URL
	apiKey    string
	userAgent string
}

// New creates a new imagery service client.
func New(baseURL string, options ...Option) (*Client, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.timeout,
		}
	}

	if opts.retryMax != 0 {
		rclient := &retryablehttp.Client{
			HTTPClient:   httpClient,
			Logger:       retryLogger{},
			RetryWaitMin: opts.retryWaitMin,
			RetryWaitMax: opts.retryWaitMax,
			RetryMax:     opts.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			// Hand back the last response so its status can be reported.
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		}
		httpClient = rclient.StandardClient()
		if opts.httpClient == nil {
			// The inner client already bounds each try. Bound the whole
			// sequence of tries as well.
			httpClient.Timeout = opts.timeout
		}
	}

	return &Client{
		c:         httpClient,
		baseURL:   u,
		apiKey:    opts.apiKey,
		userAgent: opts.userAgent,
	}, nil
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// Photos returns the photo entries of the place identified by placeID. A place
// with no photos yields an empty slice and no error. Any non-success response
// is returned as an *apierror.Error.
func (c *Client) Photos(ctx context.Context, placeID string) ([]Photo, error) {
	if !ValidPlaceID(placeID) {
		return nil, ErrInvalidPlaceID
	}
	u := c.baseURL.JoinPath(placeID, photosPath)
	req, err := c.newRequest(ctx, u.String())
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerFieldMask, photosFieldMask)
	req.Header.Set("Accept", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(EndpointPhotos, resp.StatusCode, body)
	}

	var photos photosResponse
	if len(body) != 0 {
		if err = json.Unmarshal(body, &photos); err != nil {
			return nil, fmt.Errorf("cannot decode photos response: %w", err)
		}
	}
	return photos.Photos, nil
}

// ValidPlaceID reports whether id can be sent to the imagery service. Place
// ids are placed in the request path, so anything that could leave the
// place's path segment is rejected.
func ValidPlaceID(id string) bool {
	if id == "" || len(id) > maxPlaceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch b := id[i]; {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '-', b == '_':
		default:
			return false
		}
	}
	return true
}

// MediaURL returns the media URL for the named photo.
func (c *Client) MediaURL(photoName string) string {
	return c.baseURL.JoinPath(photoName, mediaPath).String()
}

// Verify fetches mediaURL and returns an error if the fetch fails or answers
// with a non-success status. Redirects are followed.
func (c *Client) Verify(ctx context.Context, mediaURL string) error {
	req, err := c.newRequest(ctx, mediaURL)
	if err != nil {
		return err
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apierror.FromResponse(EndpointMedia, resp.StatusCode, body)
	}
	// Drain a bounded amount so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxVerifyRead))
	return nil
}

func (c *Client) String() string {
	return c.baseURL.String()
}

func (c *Client) newRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// retryLogger routes retryablehttp logging to the package logger.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}
