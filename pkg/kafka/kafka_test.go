package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutation struct {
	Type   string `json:"type"`
	PostID string `json:"post_id"`
}

func TestEncodeAndDecode(t *testing.T) {
	msgs, err := encode([]Event{{Key: "p1", Value: mutation{Type: "updated", PostID: "p1"}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("p1"), msgs[0].Key)

	got, err := DecodeJSON[mutation](msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, mutation{Type: "updated", PostID: "p1"}, got)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode([]Event{{Key: "x", Value: make(chan int)}})
	require.Error(t, err)
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[mutation]([]byte("{not json"))
	require.Error(t, err)
}
