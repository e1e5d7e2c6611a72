package jam

import (
	"errors"
)

var (
	// errFirstByteNineByteSerialization is returned when the first byte has wrong value in 9-byte serialization
	errFirstByteNineByteSerialization = errors.New("expected first byte to be 255 for 9-byte serialization")

	ErrShortBuffer         = errors.New("destination buffer too short")
	ErrUnexpectedEOF       = errors.New("unexpected end of input")
	ErrTrailingBytes       = errors.New("trailing bytes after decoding")
	ErrDecodingBool        = errors.New("error decoding boolean")
	ErrInvalidOptionalFlag = errors.New("invalid optional flag")
	ErrNaturalOverflow     = errors.New("natural number exceeds 2^64-1")
	ErrUnsortedMapKeys     = errors.New("map keys are not strictly ascending")
	ErrUnsortedSet         = errors.New("set items are not strictly ascending")
	ErrFixedLength         = errors.New("fixed length mismatch")

	ErrUnknownVariant      = "unknown variant tag: %d"
	ErrUnmatchedVariant    = "no variant matches value of type %T"
	ErrDecodingLength      = "error decoding length: %w"
	ErrLengthTooLarge      = "declared length %d exceeds remaining input %d"
	ErrEncodingStructField = "encoding struct field '%s': %w"
	ErrDecodingStructField = "decoding struct field '%s': %w"
	ErrDecodingElement     = "decoding element %d: %w"
	ErrDecodingMapKey      = "error decoding map key: %w"
	ErrDecodingMapValue    = "error decoding map value: %w"
)
