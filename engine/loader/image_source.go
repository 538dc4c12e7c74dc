package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

const defaultImageQueueSize = 64

// rasterImageSource is the implementation of the ImageSource interface.
type rasterImageSource struct {
	mu *sync.Mutex

	pool   worker.DynamicWorkerPool
	nextID int
	closed bool
}

// ImageSource decodes encoded image bytes into pixels.
type ImageSource interface {
	// Decode decodes data off the calling goroutine.
	//
	// Parameters:
	//   - ctx: a task still queued when ctx is done is rejected with ctx.Err()
	//   - data: the encoded bytes
	//   - mimeType: the declared mime type, may be empty
	//
	// Returns:
	//   - *future.Future[*common.ImageData]: the decoded image
	Decode(ctx context.Context, data []byte, mimeType string) *future.Future[*common.ImageData]

	// Supports reports whether mimeType can be decoded.
	//
	// Parameters:
	//   - mimeType: e.g. "image/webp"
	//
	// Returns:
	//   - bool: true if Decode handles the format
	Supports(mimeType string) bool

	// Close stops the decode workers. Later Decode calls fail.
	Close()
}

var _ ImageSource = &rasterImageSource{}

// NewImageSource creates an ImageSource decoding png, jpeg, gif, bmp and webp on a pool of workers.
//
// Parameters:
//   - workers: the maximum number of concurrent decodes, at least 1
//
// Returns:
//   - ImageSource: the image source
func NewImageSource(workers int) ImageSource {
	if workers < 1 {
		workers = 1
	}
	return &rasterImageSource{
		mu:   &sync.Mutex{},
		pool: worker.NewDynamicWorkerPool(workers, defaultImageQueueSize, 0),
	}
}

func (s *rasterImageSource) Supports(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/bmp", "image/webp":
		return true
	}
	return false
}

func (s *rasterImageSource) Decode(ctx context.Context, data []byte, mimeType string) *future.Future[*common.ImageData] {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return future.Rejected[*common.ImageData](fmt.Errorf("image source closed"))
	}
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	if detected := common.DetectImageMimeType(data); detected != "" {
		mimeType = detected
	}
	if mimeType != "" && !s.Supports(mimeType) {
		return future.Rejected[*common.ImageData](fmt.Errorf("%w: no decoder for %s", ErrMissingRequiredCapability, mimeType))
	}

	p := future.NewPromise[*common.ImageData]()
	task := worker.Task{
		ID:      id,
		Payload: mimeType,
		Do: func() (any, error) {
			if err := ctx.Err(); err != nil {
				p.Reject(err)
				return nil, err
			}
			img, err := common.DecodeImage(data)
			if err != nil {
				p.Reject(err)
				return nil, err
			}
			p.Resolve(img)
			return img, nil
		},
	}
	// SubmitTask blocks while the queue is full
	go s.pool.SubmitTask(task)
	return p.Future()
}

func (s *rasterImageSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pool.Stop()
}
