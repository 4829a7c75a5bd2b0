package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/metadata"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
)

// DefaultContentType is used when neither the upstream nor the file metadata names one.
const DefaultContentType = "audio/mpeg"

// Response is a relayable upstream response. The caller must close Body.
type Response struct {
	Status   int
	Header   http.Header
	Body     io.ReadCloser
	Size     int64 // whole file size, -1 when unknown
	MimeType string
}

// Proxy streams files from a [services.FileStore] with tokens from a [services.TokenProvider].
type Proxy struct {
	files  services.FileStore
	tokens services.TokenProvider
	logger *log.Logger
}

// NewProxy creates a streaming proxy.
func NewProxy(files services.FileStore, tokens services.TokenProvider, logger *log.Logger) *Proxy {
	return &Proxy{files: files, tokens: tokens, logger: shared.WithLogger(logger, "component", "stream")}
}

// Stream opens fileID for reading, honoring rangeHeader when present.
func (p *Proxy) Stream(ctx context.Context, fileID, rangeHeader string) (*Response, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", shared.ErrInvalidRequest)
	}

	info, err := p.files.FileInfo(ctx, fileID)
	if err != nil {
		return nil, err
	}

	rng, err := ParseRange(rangeHeader, info.Size)
	if err != nil {
		return nil, err
	}

	upstreamRange := ""
	if rng != nil {
		upstreamRange = rng.Header()
	}

	resp, err := p.fetch(ctx, fileID, upstreamRange)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, shared.NewUpstreamError(resp.StatusCode, body)
	}

	p.logger.Debug("streaming", "file", fileID, "range", upstreamRange, "status", resp.StatusCode)

	return &Response{
		Status:   resp.StatusCode,
		Header:   relayHeaders(resp, rng, info.Size, info.MimeType),
		Body:     resp.Body,
		Size:     info.Size,
		MimeType: info.MimeType,
	}, nil
}

// fetch performs the upstream request, retrying once with a refreshed token on 401.
func (p *Proxy) fetch(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.files.Fetch(ctx, fileID, token, rangeHeader)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	drain(resp)
	p.logger.Debug("file store rejected token, refreshing", "file", fileID)

	token, err = p.tokens.ForceRefresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = p.files.Fetch(ctx, fileID, token, rangeHeader)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, fmt.Errorf("%w: file %s", shared.ErrUpstreamAuthFailed, fileID)
	}
	return resp, nil
}

// relayHeaders prefers upstream values and falls back to ones computed from the range and size.
func relayHeaders(resp *http.Response, rng *ByteRange, size int64, mimeType string) http.Header {
	h := make(http.Header)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimeType
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")

	if cr := resp.Header.Get("Content-Range"); cr != "" {
		h.Set("Content-Range", cr)
	} else if rng != nil {
		if cr := rng.ContentRange(size); cr != "" {
			h.Set("Content-Range", cr)
		}
	}

	switch {
	case resp.ContentLength >= 0:
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	case rng != nil && rng.Length() >= 0:
		h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	case rng == nil && size >= 0:
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	return h
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// ReadPrefix reads at most n bytes from the start of fileID.
func (p *Proxy) ReadPrefix(ctx context.Context, fileID string, n int64) (*metadata.Prefix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: prefix length must be positive", shared.ErrInvalidRequest)
	}

	resp, err := p.Stream(ctx, fileID, fmt.Sprintf("bytes=0-%d", n-1))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, n))
	if err != nil {
		return nil, fmt.Errorf("failed to read file prefix: %w", err)
	}

	return &metadata.Prefix{Data: data, Size: resp.Size, MimeType: resp.MimeType}, nil
}
