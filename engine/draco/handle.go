package draco

import "sync"

// BufferHandle owns an encoded buffer until it is transferred to a worker.
// After transfer the handle is empty and only the cached result of that transfer can be retrieved.
type BufferHandle struct {
	mu          *sync.Mutex
	data        []byte
	transferred bool
}

// NewBufferHandle wraps data. The caller must not use data after passing it to a decode.
//
// Parameters:
//   - data: the encoded bytes
//
// Returns:
//   - *BufferHandle: the handle
func NewBufferHandle(data []byte) *BufferHandle {
	return &BufferHandle{mu: &sync.Mutex{}, data: data}
}

// Len returns the number of bytes still owned by the handle, zero after transfer.
func (h *BufferHandle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}

// Transferred reports whether the bytes were handed to a worker.
func (h *BufferHandle) Transferred() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transferred
}

// transfer moves the bytes out of the handle.
func (h *BufferHandle) transfer() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transferred {
		return nil, false
	}
	data := h.data
	h.data = nil
	h.transferred = true
	return data, true
}
