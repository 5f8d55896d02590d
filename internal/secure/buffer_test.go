package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	buf := NewBuffer([]byte("derived-key-material"))
	defer buf.Destroy()

	locked, err := buf.Open()
	require.NoError(t, err)
	defer locked.Destroy()

	assert.Equal(t, "derived-key-material", string(locked.Bytes()))
}

func TestBufferOpenTwice(t *testing.T) {
	buf := NewBuffer([]byte("value"))
	defer buf.Destroy()

	for i := 0; i < 2; i++ {
		locked, err := buf.Open()
		require.NoError(t, err)
		assert.Equal(t, "value", string(locked.Bytes()))
		locked.Destroy()
	}
}

func TestBufferDestroyIdempotent(t *testing.T) {
	buf := NewBuffer([]byte("value"))
	buf.Destroy()
	buf.Destroy()

	locked, err := buf.Open()
	assert.ErrorIs(t, err, ErrBufferDestroyed)
	assert.Nil(t, locked)
}
