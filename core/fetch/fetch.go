// Package fetch downloads DEM rasters from the OpenTopography REST API.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/core/credential"
	"topofetch/internal/errors"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

// DefaultBaseURL is the public OpenTopography API root
const DefaultBaseURL = "https://portal.opentopography.org/API"

const errorBodyLimit = 512

// Request is one download
type Request struct {
	Source    catalog.Descriptor
	Box       bbox.Box
	Token     credential.Token
	Directory string
	Prefix    string
}

// Result locates the downloaded file
type Result struct {
	Path      string `json:"path"`
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
	Bytes     int64  `json:"bytes"`
}

// Client fetches rasters over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// Config configures the client
type Config struct {
	// BaseURL overrides the API root
	BaseURL string

	// HTTPTimeout bounds a request; zero means no client-imposed timeout
	HTTPTimeout time.Duration

	// HTTPClient replaces the default client entirely
	HTTPClient *http.Client

	Metrics *metrics.Metrics
}

// NewClient creates a fetch client
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(base, "/"),
		metrics:    cfg.Metrics,
		log:        logging.Named("fetch"),
	}
}

// Filename is the deterministic name of the raw download
func Filename(prefix string, source catalog.Descriptor) string {
	ext := ".tif"
	if !source.IsRaster() {
		ext = ".json"
	}
	return prefix + "_" + source.Name + ext
}

// BuildURL assembles the request URL. The second return value is safe to log.
func (c *Client) BuildURL(req Request) (string, string, error) {
	q := url.Values{}
	var endpoint string

	switch req.Source.Kind {
	case catalog.KindGlobalDEM:
		endpoint = "globaldem"
		q.Set("demtype", req.Source.Name)
	case catalog.KindUSGSDEM:
		endpoint = "usgsdem"
		q.Set("datasetName", req.Source.Name)
	case catalog.KindCatalog:
		endpoint = "otCatalog"
		q.Set("productFormat", "PointCloud")
		q.Set("minx", coord(req.Box.West))
		q.Set("miny", coord(req.Box.South))
		q.Set("maxx", coord(req.Box.East))
		q.Set("maxy", coord(req.Box.North))
		q.Set("detail", "false")
		q.Set("outputFormat", "json")
	default:
		return "", "", errors.Configuration("dataset %s has no endpoint family", req.Source.Name)
	}

	if req.Source.IsRaster() {
		q.Set("south", coord(req.Box.South))
		q.Set("north", coord(req.Box.North))
		q.Set("west", coord(req.Box.West))
		q.Set("east", coord(req.Box.East))
		q.Set("outputFormat", "GTiff")
	}

	base := c.baseURL + "/" + endpoint + "?"
	if req.Token.Empty() {
		u := base + q.Encode()
		return u, u, nil
	}

	redacted := url.Values{}
	for k, v := range q {
		redacted[k] = v
	}
	q.Set("API_Key", req.Token.Value())
	redacted.Set("API_Key", req.Token.Redacted())
	return base + q.Encode(), base + redacted.Encode(), nil
}

// coord renders a degree value without float noise (56.554, not 56.55400000000001)
func coord(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// Fetch downloads the raster described by req into req.Directory.
// The body is streamed to a temporary sibling and renamed on success;
// on any failure nothing is left at the destination.
func (c *Client) Fetch(ctx context.Context, req Request) (Result, error) {
	if err := catalog.RequireCredential(req.Source, !req.Token.Empty()); err != nil {
		return Result{}, err
	}

	full, safe, err := c.BuildURL(req)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(req.Directory, 0755); err != nil {
		return Result{}, errors.Internal("cannot create output directory", err).WithContext("path", req.Directory)
	}

	name := Filename(req.Prefix, req.Source)
	dest := filepath.Join(req.Directory, name)
	log := c.log.With(zap.String("dataset", req.Source.Name), zap.String("url", safe), zap.String("dest", dest))
	log.Info("downloading DEM", zap.Stringer("bbox", req.Box), zap.Stringer("api_key", req.Token))

	start := time.Now()
	n, err := c.download(ctx, full, safe, dest, req.Token, req.Source.IsRaster())
	if err != nil {
		c.metrics.AddFetched(req.Source.Name, "error", 0)
		log.Error("download failed", zap.Error(err))
		return Result{}, err
	}
	c.metrics.AddFetched(req.Source.Name, "ok", n)
	log.Info("download finished", zap.Int64("bytes", n), zap.Duration("took", time.Since(start)))

	return Result{
		Path:      dest,
		Directory: req.Directory,
		Filename:  name,
		Bytes:     n,
	}, nil
}

func (c *Client) download(ctx context.Context, full, safe, dest string, token credential.Token, expectTIFF bool) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return 0, errors.Fetch("failed to create request", safe, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, errors.Fetch("request failed", safe, scrub(err, token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return 0, errors.Fetch(fmt.Sprintf("elevation service returned status %d", resp.StatusCode), safe, nil).
			WithContext("status", resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(body)))
	}

	br := bufio.NewReader(resp.Body)
	if expectTIFF {
		head, _ := br.Peek(4)
		if !isTIFF(head) {
			body, _ := io.ReadAll(io.LimitReader(br, errorBodyLimit))
			return 0, errors.Fetch("elevation service did not return a GeoTIFF", safe, nil).
				WithContext("body", strings.TrimSpace(string(body)))
		}
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, errors.Internal("cannot create download file", err).WithContext("path", tmp)
	}

	n, copyErr := io.Copy(f, br)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return n, errors.Fetch("download interrupted", safe, scrub(copyErr, token)).WithContext("bytes", n)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return n, errors.Internal("cannot move download into place", err).WithContext("path", dest)
	}
	return n, nil
}

var tiffMagic = [][]byte{
	{'I', 'I', 42, 0},
	{'M', 'M', 0, 42},
	{'I', 'I', 43, 0},
	{'M', 'M', 0, 43},
}

func isTIFF(head []byte) bool {
	for _, m := range tiffMagic {
		if bytes.Equal(head, m) {
			return true
		}
	}
	return false
}

// scrub removes the key from transport errors, which embed the request URL
// verbatim, so the query-escaped form is replaced as well.
func scrub(err error, token credential.Token) error {
	if err == nil || token.Empty() {
		return err
	}
	msg := err.Error()
	clean := msg
	for _, form := range []string{url.QueryEscape(token.Value()), token.Value()} {
		clean = strings.ReplaceAll(clean, form, token.Redacted())
	}
	if clean == msg {
		return err
	}
	return fmt.Errorf("%s", clean)
}
