// Package wms requests rendered map rasters from a Web Map Service (GetMap).
package wms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	ErrInvalidRequest   = errors.New("gridfetch: invalid GetMap request")
	ErrServiceException = errors.New("gridfetch: WMS service exception")
	ErrStatus           = errors.New("gridfetch: unexpected WMS response status")
	ErrSize             = errors.New("gridfetch: unexpected raster size")
)

const (
	Version111 = "1.1.1"
	Version130 = "1.3.0"

	// maxErrorBody limits how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// Request describes a single GetMap call.
type Request struct {
	Bound  orb.Bound // in CRS units, Min is the bottom-left corner
	Width  int       // pixels
	Height int       // pixels
	CRS    int       // EPSG code
	Layer  string
	Styles string
	Time   string // optional, passed through as TIME
}

func (r Request) validate() error {
	if r.Layer == "" {
		return fmt.Errorf("%w: empty layer", ErrInvalidRequest)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: size %vx%v", ErrInvalidRequest, r.Width, r.Height)
	}
	if r.CRS <= 0 {
		return fmt.Errorf("%w: crs %v", ErrInvalidRequest, r.CRS)
	}
	if r.Bound.Min.X() >= r.Bound.Max.X() || r.Bound.Min.Y() >= r.Bound.Max.Y() {
		return fmt.Errorf("%w: empty bbox %v", ErrInvalidRequest, r.Bound)
	}
	return nil
}

// Client implements GetMap for one WMS endpoint.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	format     string
	version    string
}

type clientConfig struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
	Format     string
	Version    string
}

type ClientOption func(*clientConfig)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) { c.HTTPClient = client }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.Logger = logger }
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *clientConfig) { c.UserAgent = userAgent }
}

// WithFormat sets the requested image MIME type (default "image/png").
func WithFormat(format string) ClientOption {
	return func(c *clientConfig) { c.Format = format }
}

// WithVersion selects the protocol version, Version130 (default) or Version111.
func WithVersion(version string) ClientOption {
	return func(c *clientConfig) { c.Version = version }
}

// NewClient creates a Client for the given endpoint,
// e.g. "https://services.sentinel-hub.com/ogc/wms/<instance>".
// Query parameters already present in baseURL are sent with every request.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	config := clientConfig{
		HTTPClient: http.DefaultClient,
		Logger:     slog.New(slog.DiscardHandler),
		Format:     "image/png",
		Version:    Version130,
	}
	for _, opt := range opts {
		opt(&config)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gridfetch: invalid WMS url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gridfetch: invalid WMS url %q: scheme must be http or https", baseURL)
	}
	if config.Version != Version111 && config.Version != Version130 {
		return nil, fmt.Errorf("gridfetch: unsupported WMS version %q", config.Version)
	}

	return &Client{
		baseURL:    u,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
		userAgent:  config.UserAgent,
		format:     config.Format,
		version:    config.Version,
	}, nil
}

var getMapParams = map[string]bool{
	"SERVICE": true, "REQUEST": true, "VERSION": true, "LAYERS": true, "STYLES": true,
	"FORMAT": true, "WIDTH": true, "HEIGHT": true, "BBOX": true, "SRS": true, "CRS": true, "TIME": true,
}

// URL returns the GetMap URL for req.
func (c *Client) URL(req Request) string {
	u := *c.baseURL
	query := u.Query()
	// WMS parameter names are case-insensitive; drop base URL copies of the ones set here.
	for name := range query {
		if getMapParams[strings.ToUpper(name)] {
			delete(query, name)
		}
	}
	query.Set("SERVICE", "WMS")
	query.Set("REQUEST", "GetMap")
	query.Set("VERSION", c.version)
	query.Set("LAYERS", req.Layer)
	query.Set("STYLES", req.Styles)
	query.Set("FORMAT", c.format)
	query.Set("WIDTH", strconv.Itoa(req.Width))
	query.Set("HEIGHT", strconv.Itoa(req.Height))
	query.Set("BBOX", formatBBox(req.Bound))

	crs := "EPSG:" + strconv.Itoa(req.CRS)
	if c.version == Version111 {
		query.Set("SRS", crs)
	} else {
		query.Set("CRS", crs)
	}

	if req.Time != "" {
		query.Set("TIME", req.Time)
	}

	u.RawQuery = query.Encode()
	return u.String()
}

// formatBBox writes minx,miny,maxx,maxy. Projected systems keep the
// easting,northing axis order in both protocol versions.
func formatBBox(b orb.Bound) string {
	coords := []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	parts := make([]string, len(coords))
	for i, v := range coords {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// GetMap requests and decodes a single raster.
func (c *Client) GetMap(ctx context.Context, req Request) (image.Image, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	requestURL := c.URL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("gridfetch: GET", "url", requestURL)
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("gridfetch: reading WMS response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %v: %s", ErrStatus, res.Status, excerpt(body))
	}
	if isServiceException(res.Header.Get("Content-Type"), body) {
		return nil, fmt.Errorf("%w: %s", ErrServiceException, excerpt(body))
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gridfetch: WMS did not return a valid image (%v): %w", res.Header.Get("Content-Type"), err)
	}
	if got := img.Bounds().Size(); got.X != req.Width || got.Y != req.Height {
		return nil, fmt.Errorf("%w: got %vx%v, want %vx%v", ErrSize, got.X, got.Y, req.Width, req.Height)
	}

	c.logger.Debug("gridfetch: decoded", "format", format, "bytes", len(body))
	return img, nil
}

func isServiceException(contentType string, body []byte) bool {
	if strings.Contains(contentType, "xml") {
		return true
	}
	head := bytes.TrimSpace(body[:min(len(body), 256)])
	return bytes.HasPrefix(head, []byte("<?xml")) || bytes.Contains(head, []byte("ServiceException"))
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
