package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/internal/errors"
)

func writeKey(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ot.key")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadStripsTrailingWhitespace(t *testing.T) {
	tok, err := Load(writeKey(t, "abcdef0123456789\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", tok.Value())
	assert.False(t, tok.Empty())
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.key")},
		{"empty file", writeKey(t, "")},
		{"whitespace only", writeKey(t, " \n\t")},
		{"no path", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeCredential))
		})
	}
}

// TestTokenNeverPrintsInFull proves formatting a token only exposes a prefix
func TestTokenNeverPrintsInFull(t *testing.T) {
	tok, err := Load(writeKey(t, "abcdef0123456789"))
	require.NoError(t, err)

	assert.Equal(t, "abcd****", tok.Redacted())
	assert.NotContains(t, fmt.Sprintf("%v %s", tok, tok), "0123456789")

	short, err := Load(writeKey(t, "abc"))
	require.NoError(t, err)
	assert.Equal(t, "****", short.Redacted())
}

func TestLoadOptional(t *testing.T) {
	tok, err := LoadOptional(filepath.Join(t.TempDir(), "absent.key"))
	require.NoError(t, err)
	assert.True(t, tok.Empty())

	_, err = LoadOptional(writeKey(t, ""))
	assert.True(t, errors.IsType(err, errors.TypeCredential))
}
