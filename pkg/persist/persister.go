package persist

import "errors"

// Persister keeps one value of type T in a single file under dir. The file
// name is basename plus the codec extension.
type Persister[T any] struct {
	dir      string
	basename string
	codec    Codec
}

// NewPersister binds a persister to the file basename in dir.
func NewPersister[T any](dir, basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		dir:      dir,
		basename: basename,
		codec:    codec,
	}
}

// Path returns the file the value is stored in.
func (p *Persister[T]) Path() string {
	return StatePath(p.dir, p.basename, p.codec)
}

// Save replaces the stored value atomically.
func (p *Persister[T]) Save(state T) error {
	return SaveState(p.dir, p.basename, p.codec, state)
}

// Load reads the stored value. With no file yet it returns found == false and
// a nil error; any other failure is returned as is.
func (p *Persister[T]) Load() (state T, found bool, err error) {
	err = LoadState(p.dir, p.basename, p.codec, &state)
	if errors.Is(err, ErrStateNotFound) {
		var zero T

		return zero, false, nil
	}

	if err != nil {
		var zero T

		return zero, false, err
	}

	return state, true, nil
}
