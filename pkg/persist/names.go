package persist

import (
	"errors"
	"fmt"
)

// Codec names accepted by CodecByName.
const (
	CodecNameJSON = "json"
	CodecNameGob  = "gob"
	CodecNameLZ4  = "lz4"
)

// ErrUnknownCodec is returned by CodecByName for an unsupported name.
var ErrUnknownCodec = errors.New("unknown codec")

// CodecByName maps a configuration value to a codec. "lz4" is gob framed
// with LZ4 compression.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecNameJSON:
		return NewJSONCodec(), nil
	case CodecNameGob:
		return NewGobCodec(), nil
	case CodecNameLZ4:
		return NewLZ4Codec(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
