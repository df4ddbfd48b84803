package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingError_Kinds(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     ErrorKind
		client   bool
	}{
		{"invalid image", InvalidImage("decode", base), ErrInvalidImage, KindInvalidImage, true},
		{"model", ModelFailure("predict", base), ErrModel, KindModel, false},
		{"encoding", EncodingFailure("encode png", base), ErrEncoding, KindEncoding, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, tt.err, base)
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.client, IsClientError(tt.err))
		})
	}
}

func TestProcessingError_WrappedChain(t *testing.T) {
	err := fmt.Errorf("image 3: %w", InvalidImage("decode", errors.New("bad header")))

	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.NotErrorIs(t, err, ErrModel)
	assert.Equal(t, KindInvalidImage, KindOf(err))

	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "decode", pe.Op)
	assert.Contains(t, err.Error(), "InvalidImage: decode: bad header")
}

func TestKindOf_Untagged(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(nil))
	assert.Equal(t, KindModel, KindOf(errors.New("plain")))
	assert.False(t, IsClientError(errors.New("plain")))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "InvalidImage", KindInvalidImage.String())
	assert.Equal(t, "ModelError", KindModel.String())
	assert.Equal(t, "EncodingError", KindEncoding.String())
	assert.Equal(t, "Unknown", ErrorKind(42).String())
}

func TestProcessingError_NilCause(t *testing.T) {
	err := &ProcessingError{Kind: KindInvalidImage, Op: "zero dimensions"}
	assert.Equal(t, "InvalidImage: zero dimensions", err.Error())
	assert.ErrorIs(t, err, ErrInvalidImage)
}
