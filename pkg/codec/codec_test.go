package codec_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/quote-stream/pkg/codec"
	"github.com/shubham-shewale/quote-stream/pkg/models"
)

func sample() *models.Quote {
	q := models.NewQuote("ACME")
	q.SetValue(101.5)
	q.SetChange(-0.25)
	q.SetTime("2024-01-01T10:00:00Z")
	return q
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.MsgPack} {
		t.Run(c.Name(), func(t *testing.T) {
			full := sample()
			b, err := c.Encode(full)
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			assert.True(t, full.Equal(got), "got %s", got)

			partial := sample()
			partial.ClearChange()
			b, err = c.Encode(partial)
			require.NoError(t, err)
			got, err = c.Decode(b)
			require.NoError(t, err)
			assert.True(t, partial.Equal(got))
			assert.Nil(t, got.Change, "unset change must not decode as zero")

			inf := sample()
			inf.SetValue(math.Inf(1))
			inf.SetChange(math.NaN())
			b, err = c.Encode(inf)
			require.NoError(t, err)
			got, err = c.Decode(b)
			require.NoError(t, err)
			assert.True(t, inf.Equal(got), "got %s", got)
		})
	}
}

func TestJSON_Nulls(t *testing.T) {
	q := models.NewQuote("ACME")
	b, err := codec.JSON.Encode(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"company":"ACME","value":null,"change":null,"time":""}`, string(b))
}

func TestJSON_DecodeNumericAndMissing(t *testing.T) {
	got, err := codec.JSON.Decode([]byte(`{"company":"ACME","value":101.5,"time":"t"}`))
	require.NoError(t, err)
	require.NotNil(t, got.Value)
	assert.Equal(t, 101.5, *got.Value)
	assert.Nil(t, got.Change)
}

func TestDecode_Garbage(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.MsgPack} {
		_, err := c.Decode([]byte("{broken"))
		assert.Error(t, err, c.Name())
	}
}

func TestByName(t *testing.T) {
	c, err := codec.ByName("")
	require.NoError(t, err)
	assert.Equal(t, codec.JSON, c)

	c, err = codec.ByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, codec.MsgPack, c)

	_, err = codec.ByName("avro")
	assert.ErrorIs(t, err, codec.ErrUnknownCodec)
}

func TestByContentType(t *testing.T) {
	assert.Equal(t, codec.MsgPack, codec.ByContentType("application/msgpack", codec.JSON))
	assert.Equal(t, codec.JSON, codec.ByContentType("application/json", codec.MsgPack))
	assert.Equal(t, codec.MsgPack, codec.ByContentType("", codec.MsgPack))
}
