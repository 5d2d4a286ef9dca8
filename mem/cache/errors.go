package cache

type constError string

func (errStr constError) Error() string { return string(errStr) }

const (
	// ErrInvalidConfig may be returned from [Builder.Build] and [New].
	ErrInvalidConfig = constError("invalid cache configuration")

	// ErrFetch may be returned from [Cache.Load] when the memory cannot
	// provide the block.
	ErrFetch = constError("failed to fetch block from memory")
)
