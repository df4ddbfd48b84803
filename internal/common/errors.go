package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a processing failure.
type ErrorKind int

const (
	// KindInvalidImage marks undecodable input or a zero-dimension image. Client fault.
	KindInvalidImage ErrorKind = iota + 1
	// KindModel marks inference failures, shape mismatches and missing model files.
	KindModel
	// KindEncoding marks failures while serializing the output image.
	KindEncoding
)

// Sentinels for errors.Is checks against a ProcessingError.
var (
	ErrInvalidImage = errors.New("invalid image")
	ErrModel        = errors.New("model error")
	ErrEncoding     = errors.New("encoding error")
)

// String returns the kind name used in logs and API responses.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidImage:
		return "InvalidImage"
	case KindModel:
		return "ModelError"
	case KindEncoding:
		return "EncodingError"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidImage:
		return ErrInvalidImage
	case KindModel:
		return ErrModel
	case KindEncoding:
		return ErrEncoding
	default:
		return nil
	}
}

// ProcessingError is the tagged error returned by every background removal stage.
type ProcessingError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ProcessingError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// InvalidImage wraps err as a KindInvalidImage failure of op.
func InvalidImage(op string, err error) error {
	return &ProcessingError{Kind: KindInvalidImage, Op: op, Err: err}
}

// ModelFailure wraps err as a KindModel failure of op.
func ModelFailure(op string, err error) error {
	return &ProcessingError{Kind: KindModel, Op: op, Err: err}
}

// EncodingFailure wraps err as a KindEncoding failure of op.
func EncodingFailure(op string, err error) error {
	return &ProcessingError{Kind: KindEncoding, Op: op, Err: err}
}

// KindOf extracts the kind of a ProcessingError anywhere in err's chain.
// Untagged errors are reported as KindModel since they originate server-side.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindModel
}

// IsClientError reports whether err should be surfaced as a caller fault.
func IsClientError(err error) bool {
	return KindOf(err) == KindInvalidImage
}
