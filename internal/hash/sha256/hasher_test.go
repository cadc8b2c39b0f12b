package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	first, err := h.Hash([]byte("<html>hello</html>"))
	require.NoError(t, err)
	second, err := h.Hash([]byte("<html>hello</html>"))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 64)

	other, err := h.Hash([]byte("<html>changed</html>"))
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestHasherKnownDigest(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}
