package sqlite

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

func TestPayloadCodecs(t *testing.T) {
	fields := map[string]any{"last_name": "山田", "employees": 42}

	for _, codec := range []string{types.CodecJSON, types.CodecMsgpack} {
		t.Run(codec, func(t *testing.T) {
			data, err := encodePayload(codec, fields)
			require.NoError(t, err)

			got, err := decodePayload(codec, data)
			require.NoError(t, err)
			assert.Equal(t, "山田", got["last_name"])
			assert.Len(t, got, 2)
		})
	}
}

func TestJSONPayloadKeepsNumbers(t *testing.T) {
	data, err := encodePayload(types.CodecJSON, map[string]any{"n": 9007199254740993})
	require.NoError(t, err)

	got, err := decodePayload(types.CodecJSON, data)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), got["n"])
}

func TestUnknownCodec(t *testing.T) {
	_, err := encodePayload("xml", nil)
	assert.ErrorIs(t, err, types.ErrCodecUnknown)
	_, err = decodePayload("xml", []byte("<a/>"))
	assert.ErrorIs(t, err, types.ErrCodecUnknown)
}

func TestTimestamps(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	at := time.Date(2026, 1, 2, 12, 0, 0, 500, jst)

	s := formatTime(at)
	assert.Equal(t, "2026-01-02T03:00:00.0000005Z", s)

	back, err := parseTime(s)
	require.NoError(t, err)
	assert.True(t, at.Equal(back))

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}
