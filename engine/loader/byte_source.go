package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ProgressFunc reports fetch progress. total is -1 when the size is unknown.
type ProgressFunc func(url string, loaded, total int64)

// fileByteSource is the implementation of the ByteSource interface.
type fileByteSource struct {
	mu *sync.Mutex

	client   *http.Client
	headers  map[string]string
	progress ProgressFunc

	inflight map[string]*future.Future[[]byte]
}

// ByteSource fetches raw bytes for a URL. Concurrent requests for the same URL share one fetch.
type ByteSource interface {
	// Fetch reads the resource at rawURL. Supported forms are data URIs, http(s) URLs,
	// file:// URLs and plain file paths. zstd and xz framed payloads are decompressed.
	//
	// Parameters:
	//   - ctx: carries request values; callers bound their wait with Await(ctx), cancellation
	//     does not abort a fetch other callers may have joined
	//   - rawURL: the resource location
	//
	// Returns:
	//   - *future.Future[[]byte]: the resource bytes
	Fetch(ctx context.Context, rawURL string) *future.Future[[]byte]

	// SetRequestHeader adds a header sent with every HTTP request.
	//
	// Parameters:
	//   - key: the header name
	//   - value: the header value
	SetRequestHeader(key, value string)

	// SetProgress installs a progress callback, replacing any previous one.
	//
	// Parameters:
	//   - fn: the callback, nil to disable
	SetProgress(fn ProgressFunc)
}

var _ ByteSource = &fileByteSource{}

// NewByteSource creates a ByteSource using client for HTTP requests.
//
// Parameters:
//   - client: the HTTP client, nil for http.DefaultClient
//
// Returns:
//   - ByteSource: the byte source
func NewByteSource(client *http.Client) ByteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &fileByteSource{
		mu:       &sync.Mutex{},
		client:   client,
		headers:  make(map[string]string),
		inflight: make(map[string]*future.Future[[]byte]),
	}
}

func (s *fileByteSource) SetRequestHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[key] = value
}

func (s *fileByteSource) SetProgress(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

func (s *fileByteSource) Fetch(ctx context.Context, rawURL string) *future.Future[[]byte] {
	s.mu.Lock()
	if f, ok := s.inflight[rawURL]; ok {
		s.mu.Unlock()
		return f
	}
	p := future.NewPromise[[]byte]()
	s.inflight[rawURL] = p.Future()
	s.mu.Unlock()

	// joined callers must not fail because the first one gave up; each bounds its own Await
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		data, err := s.fetch(fetchCtx, rawURL)

		s.mu.Lock()
		delete(s.inflight, rawURL)
		s.mu.Unlock()

		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(data)
	}()
	return p.Future()
}

func (s *fileByteSource) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(rawURL, "data:"):
		data, _, err = decodeDataURI(rawURL)
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		data, err = s.fetchHTTP(ctx, rawURL)
	default:
		data, err = s.fetchFile(rawURL)
	}
	if err != nil {
		return nil, err
	}
	return decompress(data)
}

func (s *fileByteSource) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}

	s.mu.Lock()
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	progress := s.progress
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: %s", rawURL, resp.Status)
	}

	var r io.Reader = resp.Body
	if progress != nil {
		r = &progressReader{r: resp.Body, url: rawURL, total: resp.ContentLength, fn: progress}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return data, nil
}

func (s *fileByteSource) fetchFile(rawURL string) ([]byte, error) {
	path := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid file url %s: %w", rawURL, err)
		}
		path = u.Path
	} else if unescaped, err := url.PathUnescape(rawURL); err == nil {
		if _, statErr := os.Stat(rawURL); statErr != nil {
			path = unescaped
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s.mu.Lock()
	progress := s.progress
	s.mu.Unlock()
	if progress != nil {
		progress(rawURL, int64(len(data)), int64(len(data)))
	}
	return data, nil
}

// progressReader forwards reads and reports the running byte count.
type progressReader struct {
	r      io.Reader
	url    string
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(p.url, p.loaded, p.total)
	}
	return n, err
}

// decodeDataURI decodes a data: URI.
//
// Parameters:
//   - uri: the data URI
//
// Returns:
//   - []byte: the payload
//   - string: the media type, empty when not declared
//   - error: error if the URI is malformed
func decodeDataURI(uri string) ([]byte, string, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data uri: missing ','")
	}
	meta := uri[len("data:"):comma]
	payload := uri[comma+1:]

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	mimeType := meta
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data uri: %w", err)
		}
		return data, mimeType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("malformed data uri: %w", err)
	}
	return []byte(text), mimeType, nil
}

// decompress unwraps zstd and xz framed payloads and returns anything else unchanged.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress zstd payload: %w", err)
		}
		common.LogDebug("decompressed zstd payload: %d -> %d bytes", len(data), len(out))
		return out, nil
	case bytes.HasPrefix(data, xzMagic):
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress xz payload: %w", err)
		}
		common.LogDebug("decompressed xz payload: %d -> %d bytes", len(data), len(out))
		return out, nil
	}
	return data, nil
}
