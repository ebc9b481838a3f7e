package segment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"snapfixer/internal/modelcache"
)

const removePath = "/api/remove"

// Session is a model bound to a rembg server. The server keeps the loaded model
// resident, so a session is cheap to reuse and safe for concurrent jobs.
type Session struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewSessionCache returns the process-wide cache of rembg sessions keyed by model name.
func NewSessionCache(endpoint string, timeout time.Duration) *modelcache.Cache[*Session] {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return modelcache.New(func(model string) (*Session, error) {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid segmenter endpoint %q: %w", endpoint, err)
		}
		return &Session{
			endpoint: endpoint,
			model:    model,
			client:   &http.Client{Timeout: timeout},
		}, nil
	})
}

// Rembg resolves its session from the shared cache on every call.
type Rembg struct {
	sessions *modelcache.Cache[*Session]
	model    string
}

// NewRembg returns a Segmenter backed by the session for model.
func NewRembg(sessions *modelcache.Cache[*Session], model string) *Rembg {
	return &Rembg{sessions: sessions, model: model}
}

// Mask implements Segmenter.
func (r *Rembg) Mask(ctx context.Context, img image.Image, opts Options) (*image.Gray, error) {
	session, err := r.sessions.Get(r.model)
	if err != nil {
		return nil, err
	}
	return session.Mask(ctx, img, opts)
}

// Mask uploads img to the rembg server and returns the matte it produces.
func (s *Session) Mask(ctx context.Context, img image.Image, opts Options) (*image.Gray, error) {
	body, contentType, err := s.buildRequestBody(img, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+removePath, body)
	if err != nil {
		return nil, fmt.Errorf("build segmenter request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request segmenter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("segmenter status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	decoded, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode segmenter mask: %w", err)
	}
	mask := toGray(decoded)
	if mask.Bounds().Size() != img.Bounds().Size() {
		return nil, fmt.Errorf("segmenter mask is %v, want %v", mask.Bounds().Size(), img.Bounds().Size())
	}
	return mask, nil
}

func (s *Session) buildRequestBody(img image.Image, opts Options) (io.Reader, string, error) {
	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("encode segmenter input: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "input.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(encoded.Bytes()); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	fields := map[string]string{
		"model": s.model,
		"om":    "true",
		"a":     strconv.FormatBool(opts.AlphaMatting),
		"af":    strconv.Itoa(opts.ForegroundThreshold),
		"ab":    strconv.Itoa(opts.BackgroundThreshold),
		"ae":    strconv.Itoa(opts.ErodeSize),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
