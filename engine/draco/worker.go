package draco

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
)

const workerQueueSize = 64

// Message types posted by workers.
const (
	messageDecode = "decode"
	messageError  = "error"
)

// message is a worker response, keyed by task id.
type message struct {
	Type     string
	ID       int
	Geometry *rawGeometry
	Err      error
}

// workerHandle is one live decode worker with its load bookkeeping.
// taskLoad, taskCosts and callbacks are guarded by the scheduler mutex.
// module and moduleErr are only touched on the worker goroutine.
type workerHandle struct {
	id     int
	w      worker.Worker
	tasks  chan worker.Task
	stop   chan int
	outbox chan message
	done   chan struct{}

	taskLoad  int
	taskCosts map[int]int
	callbacks map[int]*future.Promise[*rawGeometry]

	module    Module
	moduleErr error
}

// newWorkerHandle starts a worker, queues its one-time module initialization and
// starts routing its messages to onMessage.
//
// Parameters:
//   - id: the worker id
//   - factory: creates the decoder module, may be nil
//   - cfg: the decoder configuration passed to factory
//   - onMessage: called for every message the worker posts
//
// Returns:
//   - *workerHandle: the running worker
func newWorkerHandle(id int, factory ModuleFactory, cfg DecoderConfig, onMessage func(*workerHandle, message)) *workerHandle {
	h := &workerHandle{
		id:        id,
		tasks:     make(chan worker.Task, workerQueueSize),
		stop:      make(chan int, 1),
		outbox:    make(chan message, workerQueueSize),
		done:      make(chan struct{}),
		taskCosts: make(map[int]int),
		callbacks: make(map[int]*future.Promise[*rawGeometry]),
	}
	h.w = worker.NewWorker(id, h.tasks, h.stop, 0, nil)
	h.w.Start()

	h.tasks <- worker.Task{
		ID:      0,
		Payload: cfg,
		Do: func() (any, error) {
			if factory == nil {
				h.moduleErr = ErrMissingModule
				return nil, h.moduleErr
			}
			h.module, h.moduleErr = factory(cfg)
			return h.module, h.moduleErr
		},
	}

	go func() {
		for {
			select {
			case msg := <-h.outbox:
				onMessage(h, msg)
			case <-h.done:
				return
			}
		}
	}()
	return h
}

// post sends a decode request for data to the worker.
//
// Parameters:
//   - ctx: aborts the send if the worker queue stays full
//   - id: the task id
//   - data: the transferred encoded bytes
//   - cfg: the attributes to extract
//
// Returns:
//   - error: ctx.Err() or ErrSchedulerDisposed if the request was not queued
func (h *workerHandle) post(ctx context.Context, id int, data []byte, cfg TaskConfig) error {
	t := worker.Task{
		ID:      id,
		Payload: cfg,
		Do: func() (any, error) {
			msg := h.decode(id, data, cfg)
			h.reply(msg)
			return msg.Geometry, msg.Err
		},
	}
	select {
	case h.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrSchedulerDisposed
	}
}

func (h *workerHandle) decode(id int, data []byte, cfg TaskConfig) (msg message) {
	defer func() {
		if r := recover(); r != nil {
			msg = message{Type: messageError, ID: id, Err: fmt.Errorf("%w: decoder panic: %v", ErrDecodeFailure, r)}
		}
	}()

	if h.moduleErr != nil {
		return message{Type: messageError, ID: id, Err: h.moduleErr}
	}
	geom, err := decodeGeometry(h.module, data, cfg)
	if err != nil {
		common.LogError("draco: worker %d task %d: %v", h.id, id, err)
		return message{Type: messageError, ID: id, Err: err}
	}
	return message{Type: messageDecode, ID: id, Geometry: geom}
}

func (h *workerHandle) reply(msg message) {
	select {
	case h.outbox <- msg:
	case <-h.done:
	}
}

// assign records a task's cost against the worker. Caller holds the scheduler mutex.
func (h *workerHandle) assign(id, cost int, p *future.Promise[*rawGeometry]) {
	h.taskCosts[id] = cost
	h.taskLoad += cost
	h.callbacks[id] = p
}

// release removes a task's cost and callback. Caller holds the scheduler mutex.
func (h *workerHandle) release(id int) *future.Promise[*rawGeometry] {
	p := h.callbacks[id]
	h.taskLoad -= h.taskCosts[id]
	delete(h.taskCosts, id)
	delete(h.callbacks, id)
	return p
}

// close stops the worker and its message routing.
func (h *workerHandle) close() {
	close(h.done)
	h.w.Stop()
}
