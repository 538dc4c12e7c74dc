package draco

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

const defaultWorkerLimit = 4

// WorkerStats is a snapshot of one worker's outstanding work.
type WorkerStats struct {
	// ID is the worker id.
	ID int

	// TaskLoad is the summed byte cost of the worker's outstanding tasks.
	TaskLoad int

	// Outstanding is the number of tasks assigned but not yet answered.
	Outstanding int
}

// Scheduler decodes Draco-compressed buffers on a bounded pool of workers.
//
// Workers are created on demand up to the worker limit, each initializing its own decoder
// module once. When the pool is full the worker with the smallest outstanding byte cost
// receives the next task. Results are cached per buffer handle and task configuration.
type Scheduler interface {
	// Decode transfers the handle's bytes to a worker and decodes them.
	// Repeating a call with the same handle and configuration returns the same future.
	//
	// Parameters:
	//   - ctx: aborts queuing the task; waiting on the result is bounded by the caller's Await
	//   - handle: the encoded buffer, emptied by the call
	//   - cfg: the attributes to extract
	//
	// Returns:
	//   - *future.Future[*model.Geometry]: the decoded geometry
	Decode(ctx context.Context, handle *BufferHandle, cfg TaskConfig) *future.Future[*model.Geometry]

	// DecodeFile decodes a standalone .drc buffer using default semantic attribute ids.
	//
	// Parameters:
	//   - ctx: aborts queuing the task
	//   - data: the encoded bytes
	//
	// Returns:
	//   - *future.Future[*model.Geometry]: the decoded geometry
	DecodeFile(ctx context.Context, data []byte) *future.Future[*model.Geometry]

	// WorkerLimit returns the maximum number of workers.
	WorkerLimit() int

	// SetWorkerLimit changes the maximum number of workers. Existing workers are kept.
	SetWorkerLimit(n int)

	// SetDecoderConfig changes the configuration used to initialize new workers' modules.
	SetDecoderConfig(cfg DecoderConfig)

	// Stats returns per-worker load, in creation order.
	Stats() []WorkerStats

	// Dispose stops every worker and fails pending tasks with ErrSchedulerDisposed.
	Dispose()
}

type cachedTask struct {
	key    string
	result *future.Future[*model.Geometry]
}

type scheduler struct {
	mu *sync.Mutex

	workerLimit   int
	moduleFactory ModuleFactory
	decoderConfig DecoderConfig

	pool       []*workerHandle
	nextTaskID int
	taskCache  map[*BufferHandle]cachedTask
	disposed   bool
}

var _ Scheduler = &scheduler{}

// NewScheduler creates a scheduler with a worker limit of 4 and no decoder module.
//
// Parameters:
//   - options: functional options to configure the scheduler
//
// Returns:
//   - Scheduler: the scheduler
func NewScheduler(options ...SchedulerBuilderOption) Scheduler {
	s := &scheduler{
		mu:          &sync.Mutex{},
		workerLimit: defaultWorkerLimit,
		taskCache:   make(map[*BufferHandle]cachedTask),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// taskKey serializes cfg into a stable cache key. Map keys are emitted sorted.
func taskKey(cfg TaskConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("draco: task config: %w", err)
	}
	return common.HashKey(string(b)), nil
}

func (s *scheduler) Decode(ctx context.Context, handle *BufferHandle, cfg TaskConfig) *future.Future[*model.Geometry] {
	key, err := taskKey(cfg)
	if err != nil {
		return future.Rejected[*model.Geometry](err)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return future.Rejected[*model.Geometry](ErrSchedulerDisposed)
	}
	if cached, ok := s.taskCache[handle]; ok {
		if cached.key == key {
			s.mu.Unlock()
			return cached.result
		}
		if handle.Transferred() {
			s.mu.Unlock()
			return future.Rejected[*model.Geometry](ErrBufferTransferred)
		}
	}
	data, ok := handle.transfer()
	if !ok {
		s.mu.Unlock()
		return future.Rejected[*model.Geometry](ErrBufferTransferred)
	}

	s.nextTaskID++
	id := s.nextTaskID
	p := future.NewPromise[*rawGeometry]()
	w := s.getWorker()
	w.assign(id, len(data), p)

	result := future.Then(context.Background(), p.Future(), func(raw *rawGeometry) (*model.Geometry, error) {
		return buildGeometry(raw), nil
	})
	s.taskCache[handle] = cachedTask{key: key, result: result}
	s.mu.Unlock()

	if err := w.post(ctx, id, data, cfg); err != nil {
		s.onMessage(w, message{Type: messageError, ID: id, Err: err})
	}
	return result
}

func (s *scheduler) DecodeFile(ctx context.Context, data []byte) *future.Future[*model.Geometry] {
	return s.Decode(ctx, NewBufferHandle(data), DefaultTaskConfig())
}

// getWorker spawns a worker while below the limit, otherwise picks the least-loaded one.
// Caller holds s.mu.
func (s *scheduler) getWorker() *workerHandle {
	if len(s.pool) < s.workerLimit {
		w := newWorkerHandle(len(s.pool), s.moduleFactory, s.decoderConfig, s.onMessage)
		s.pool = append(s.pool, w)
		common.LogDebug("draco: spawned worker %d of %d", w.id+1, s.workerLimit)
		return w
	}

	chosen := s.pool[0]
	for _, w := range s.pool[1:] {
		if w.taskLoad < chosen.taskLoad {
			chosen = w
		}
	}
	return chosen
}

// onMessage routes a worker response to its task. Bookkeeping is released before the
// task's promise settles, on success and failure alike.
func (s *scheduler) onMessage(w *workerHandle, msg message) {
	switch msg.Type {
	case messageDecode, messageError:
	default:
		common.LogError("draco: unexpected message %q from worker %d", msg.Type, w.id)
		return
	}

	s.mu.Lock()
	p := w.release(msg.ID)
	s.mu.Unlock()
	if p == nil {
		return
	}

	if msg.Type == messageDecode {
		p.Resolve(msg.Geometry)
		return
	}
	p.Reject(msg.Err)
}

func (s *scheduler) WorkerLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workerLimit
}

func (s *scheduler) SetWorkerLimit(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerLimit = n
}

func (s *scheduler) SetDecoderConfig(cfg DecoderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoderConfig = cfg
}

func (s *scheduler) Stats() []WorkerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkerStats, len(s.pool))
	for i, w := range s.pool {
		out[i] = WorkerStats{ID: w.id, TaskLoad: w.taskLoad, Outstanding: len(w.taskCosts)}
	}
	return out
}

func (s *scheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	pool := s.pool
	s.pool = nil
	s.taskCache = make(map[*BufferHandle]cachedTask)

	var pending []*future.Promise[*rawGeometry]
	for _, w := range pool {
		for id := range w.taskCosts {
			if p := w.release(id); p != nil {
				pending = append(pending, p)
			}
		}
	}
	s.mu.Unlock()

	for _, w := range pool {
		w.close()
	}
	for _, p := range pending {
		p.Reject(ErrSchedulerDisposed)
	}
}
