package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `msgpack:"name"`
	Notes string `msgpack:"notes"`
}

func TestCodec_Header(t *testing.T) {
	c := NewCodec[sample]()

	small, err := c.Encode(sample{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, []byte{formatVersion, 0}, small[:headerLen])

	large, err := c.Encode(sample{Name: "a", Notes: strings.Repeat("x", 4096)})
	require.NoError(t, err)
	assert.Equal(t, []byte{formatVersion, flagGzip}, large[:headerLen])
	assert.Less(t, len(large), 4096)

	got, err := c.Decode(large)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
	assert.Len(t, got.Notes, 4096)
}

func TestCodec_CompressionDisabled(t *testing.T) {
	c := &Codec[sample]{}

	data, err := c.Encode(sample{Notes: strings.Repeat("x", 4096)})
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[1])

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Len(t, got.Notes, 4096)
}

func TestCodec_InvalidInput(t *testing.T) {
	c := NewCodec[sample]()

	tests := map[string][]byte{
		"empty":          nil,
		"header only":    {formatVersion},
		"future version": {9, 0, 0x80},
		"unknown flags":  {formatVersion, 0x40, 0x80},
		"broken gzip":    {formatVersion, flagGzip, 1, 2, 3},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(data)
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}
