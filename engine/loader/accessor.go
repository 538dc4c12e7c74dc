package loader

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/future"
	"github.com/Carmen-Shannon/oxy-gltf/engine/gltf"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
)

// loadBuffer returns the bytes of a buffer. Buffer 0 without a uri is the GLB body.
func (p *Parser) loadBuffer(ctx context.Context, index int) ([]byte, error) {
	def, err := definition(p.doc.Buffers, KindBuffer, index)
	if err != nil {
		return nil, err
	}
	if def.Type != "" && def.Type != "arraybuffer" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBufferType, def.Type)
	}

	if def.URI == "" && index == 0 {
		if p.body == nil {
			return nil, fmt.Errorf("%w: buffer 0 has no uri and the asset has no binary chunk", ErrBufferFetchFailure)
		}
		return p.body, nil
	}
	if def.URI == "" && fallbackBuffer(def) {
		common.LogWarn("buffer %d is a meshopt fallback without data, its views read as zeros", index)
		return make([]byte, def.ByteLength), nil
	}

	url := resolveURL(def.URI, p.path)
	stop := p.prof.Start(profiler.PhaseFetch)
	data, err := p.byteSource.Fetch(ctx, url).Await(ctx)
	stop()
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBufferFetchFailure, def.URI, err)
	}
	return data, nil
}

// LoadBufferView returns a zero-copy slice of the view's buffer.
//
// Parameters:
//   - ctx: bounds the buffer fetch
//   - index: the buffer view index
//
// Returns:
//   - *future.Future[[]byte]: the view bytes
func (p *Parser) LoadBufferView(ctx context.Context, index int) *future.Future[[]byte] {
	def, err := definition(p.doc.BufferViews, KindBufferView, index)
	if err != nil {
		return future.Rejected[[]byte](err)
	}
	return future.Then(ctx, dependency[[]byte](ctx, p, KindBuffer, def.Buffer), func(buf []byte) ([]byte, error) {
		end := def.ByteOffset + def.ByteLength
		if def.ByteOffset < 0 || end > len(buf) {
			return nil, fmt.Errorf("%w: bufferView %d spans [%d, %d) of a %d byte buffer", ErrIndexOutOfRange, index, def.ByteOffset, end, len(buf))
		}
		return buf[def.ByteOffset:end:end], nil
	})
}

// loadAccessor builds the attribute of an accessor.
//
// An accessor without a bufferView and without sparse data is a zero-filled array.
// A bufferView with a byteStride wider than one item yields an interleaved attribute whose
// interleaved buffer is shared by every accessor reading the same stride-aligned region.
// Sparse accessors are copied before their substitutions are written, so the underlying
// buffer is never modified.
func (p *Parser) loadAccessor(ctx context.Context, index int) (model.Attribute, error) {
	def, err := definition(p.doc.Accessors, KindAccessor, index)
	if err != nil {
		return nil, err
	}

	itemSize := gltf.ItemSize(def.Type)
	ct := model.ComponentType(def.ComponentType)
	if itemSize == 0 || !ct.Valid() {
		return nil, fmt.Errorf("loader: accessor %d has unsupported type %s/%d", index, def.Type, def.ComponentType)
	}

	if def.BufferView == nil && def.Sparse == nil {
		return model.NewBufferAttribute(model.NewTypedArray(ct, def.Count*itemSize), itemSize, def.Normalized), nil
	}

	var (
		viewF    *future.Future[[]byte]
		indicesF *future.Future[[]byte]
		valuesF  *future.Future[[]byte]
	)
	if def.BufferView != nil {
		viewF = dependency[[]byte](ctx, p, KindBufferView, *def.BufferView)
	}
	if def.Sparse != nil {
		indicesF = dependency[[]byte](ctx, p, KindBufferView, def.Sparse.Indices.BufferView)
		valuesF = dependency[[]byte](ctx, p, KindBufferView, def.Sparse.Values.BufferView)
	}

	var attr model.Attribute
	if viewF != nil {
		view, err := viewF.Await(ctx)
		if err != nil {
			return nil, err
		}
		if attr, err = p.viewAttribute(def, *def.BufferView, view, ct, itemSize); err != nil {
			return nil, fmt.Errorf("accessor %d: %w", index, err)
		}
	} else {
		attr = model.NewBufferAttribute(model.NewTypedArray(ct, def.Count*itemSize), itemSize, def.Normalized)
	}

	if def.Sparse == nil {
		return attr, nil
	}

	indices, err := indicesF.Await(ctx)
	if err != nil {
		return nil, err
	}
	values, err := valuesF.Await(ctx)
	if err != nil {
		return nil, err
	}
	return applySparse(def, attr, indices, values, ct, itemSize)
}

// viewAttribute wraps the bytes of a buffer view as the accessor's attribute.
func (p *Parser) viewAttribute(def *gltf.Accessor, viewIndex int, view []byte, ct model.ComponentType, itemSize int) (model.Attribute, error) {
	elementBytes := ct.Size()
	itemBytes := elementBytes * itemSize

	stride := 0
	if bv := p.doc.BufferViews[viewIndex]; bv.ByteStride != nil {
		stride = *bv.ByteStride
	}

	if stride > 0 && stride != itemBytes {
		slice := def.ByteOffset / stride
		key := fmt.Sprintf("InterleavedBuffer:%d:%d:%d:%d", viewIndex, slice, def.ComponentType, def.Count)

		p.mu.Lock()
		ib, ok := p.objectCache[key].(*model.InterleavedBuffer)
		if !ok {
			start := slice * stride
			length := def.Count * stride
			data := make([]byte, length)
			if start < len(view) {
				// the last stride may end early when the view is trimmed to the final item
				copy(data, view[start:min(start+length, len(view))])
			}
			ib = model.NewInterleavedBuffer(model.ViewTypedArray(ct, data), stride/elementBytes)
			p.objectCache[key] = ib
		}
		p.mu.Unlock()

		offset := (def.ByteOffset % stride) / elementBytes
		return model.NewInterleavedBufferAttribute(ib, itemSize, offset, def.Normalized), nil
	}

	end := def.ByteOffset + def.Count*itemBytes
	if def.ByteOffset < 0 || end > len(view) {
		return nil, fmt.Errorf("%w: needs bytes [%d, %d) of a %d byte view", ErrIndexOutOfRange, def.ByteOffset, end, len(view))
	}
	return model.NewBufferAttribute(model.ViewTypedArray(ct, view[def.ByteOffset:end]), itemSize, def.Normalized), nil
}

// applySparse copies attr and writes the sparse substitutions into the copy.
func applySparse(def *gltf.Accessor, attr model.Attribute, indices, values []byte, ct model.ComponentType, itemSize int) (model.Attribute, error) {
	if itemSize > 4 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSparseItemSize, itemSize)
	}
	sparse := def.Sparse

	indexType := model.ComponentType(sparse.Indices.ComponentType)
	if !indexType.Valid() {
		return nil, fmt.Errorf("loader: sparse indices have unsupported component type %d", sparse.Indices.ComponentType)
	}
	indexEnd := sparse.Indices.ByteOffset + sparse.Count*indexType.Size()
	valueEnd := sparse.Values.ByteOffset + sparse.Count*itemSize*ct.Size()
	if indexEnd > len(indices) || valueEnd > len(values) {
		return nil, fmt.Errorf("%w: sparse data exceeds its buffer views", ErrIndexOutOfRange)
	}
	sparseIndices := model.ViewTypedArray(indexType, indices[sparse.Indices.ByteOffset:indexEnd])
	sparseValues := model.ViewTypedArray(ct, values[sparse.Values.ByteOffset:valueEnd])

	out := attr.Clone()
	count := out.Count()
	for i := 0; i < sparse.Count; i++ {
		target := int(sparseIndices.At(i))
		if target < 0 || target >= count {
			common.LogWarn("sparse index %d out of range for accessor of %d items", target, count)
			continue
		}
		for c := 0; c < itemSize; c++ {
			out.SetComponent(target, c, sparseValues.At(i*itemSize+c))
		}
	}
	return model.NewBufferAttribute(out.Array(), itemSize, def.Normalized), nil
}
