package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringSortsContext(t *testing.T) {
	err := Fetch("download interrupted", "https://x/globaldem?API_Key=abcd****", io.ErrUnexpectedEOF).
		WithContext("bytes", 12)

	assert.Equal(t,
		"[FETCH_ERROR] download interrupted bytes=12 url=https://x/globaldem?API_Key=abcd****: unexpected EOF",
		err.Error())
}

func TestTypeSurvivesWrapping(t *testing.T) {
	base := Format("/data/a.bil", "truncated raster", nil)
	wrapped := fmt.Errorf("region tay: %w", base)

	assert.True(t, IsType(wrapped, TypeFormat))
	assert.False(t, IsType(wrapped, TypeFetch))
	assert.Equal(t, TypeFormat, TypeOf(wrapped))
	assert.Equal(t, TypeInternal, TypeOf(io.EOF))
	assert.ErrorIs(t, Wrap(TypeToolchain, "exit", io.EOF), io.EOF)
}
