package loader

import "errors"

var (
	// ErrUnsupportedAssetVersion is returned when asset.version is missing or its major version is below 2.
	ErrUnsupportedAssetVersion = errors.New("loader: unsupported asset, glTF versions >=2.0 are supported")

	// ErrUnknownDependencyKind is returned by GetDependency for a kind no resolver or extension handles.
	ErrUnknownDependencyKind = errors.New("loader: unknown dependency kind")

	// ErrUnsupportedBufferType is returned for buffers whose type is not "arraybuffer".
	ErrUnsupportedBufferType = errors.New("loader: unsupported buffer type")

	// ErrBufferFetchFailure is returned when a buffer cannot be fetched.
	ErrBufferFetchFailure = errors.New("loader: failed to load buffer")

	// ErrUnsupportedPrimitiveMode is returned for primitive modes outside 0..6.
	ErrUnsupportedPrimitiveMode = errors.New("loader: primitive mode unsupported")

	// ErrUnsupportedSparseItemSize is returned for sparse accessors with more than four components per item.
	ErrUnsupportedSparseItemSize = errors.New("loader: unsupported itemSize in sparse accessor")

	// ErrMissingRequiredCapability is returned when data needs a decoder or handler that was not configured.
	ErrMissingRequiredCapability = errors.New("loader: missing required capability")

	// ErrMissingImageSource is returned for images with neither a uri nor a bufferView.
	ErrMissingImageSource = errors.New("loader: image is missing uri and bufferView")

	// ErrIndexOutOfRange is returned when a definition references an index that does not exist.
	ErrIndexOutOfRange = errors.New("loader: index out of range")
)
