package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Vectors [][]float32 `json:"vectors"`
	K       int         `json:"k"`
}

func TestGoJSON(t *testing.T) {
	c := GoJSON{}
	assert.Equal(t, "go-json", c.Name())

	var p payload
	require.NoError(t, c.Unmarshal([]byte(`{"vectors":[[1,2.5],[-3,0]],"k":3,"extra":true}`), &p))
	assert.Equal(t, payload{Vectors: [][]float32{{1, 2.5}, {-3, 0}}, K: 3}, p)

	b, err := c.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"vectors":[[1,2.5],[-3,0]],"k":3}`, string(b))

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, p))
	assert.Equal(t, string(b), buf.String())

	assert.Error(t, c.Unmarshal([]byte(`{"vectors":"nope"}`), &p))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, "go-json", c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)

	_, ok = Default.(StreamCodec)
	assert.True(t, ok)
}
