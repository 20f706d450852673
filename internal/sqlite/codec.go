package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// encodePayload serializes an entity payload with the named codec.
func encodePayload(codec string, fields map[string]any) ([]byte, error) {
	switch codec {
	case types.CodecJSON:
		return json.Marshal(fields)
	case types.CodecMsgpack:
		return msgpack.Marshal(fields)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrCodecUnknown, codec)
}

// decodePayload is the inverse of encodePayload. JSON numbers decode as
// json.Number so integers survive the round trip.
func decodePayload(codec string, data []byte) (map[string]any, error) {
	fields := make(map[string]any)
	switch codec {
	case types.CodecJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("decoding json payload: %w", err)
		}
	case types.CodecMsgpack:
		if err := msgpack.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decoding msgpack payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrCodecUnknown, codec)
	}
	return fields, nil
}

// Timestamps are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
