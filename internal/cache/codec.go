package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored values start with a one byte header naming the encoding.
const (
	headerJSON byte = 'j'
	headerZstd byte = 'z'
)

type codec struct {
	compress bool
	minBytes int
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func newCodec(compress bool, minBytes int) (*codec, error) {
	// The decoder is always built so entries written by a compressing process
	// remain readable after compression is turned off.
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	c := &codec{compress: compress, minBytes: minBytes, decoder: decoder}
	if compress {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			decoder.Close()
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		c.encoder = encoder
	}
	return c, nil
}

func (c *codec) encode(value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	if c.encoder != nil && len(payload) >= c.minBytes {
		out := make([]byte, 1, len(payload)/2+1)
		out[0] = headerZstd
		return c.encoder.EncodeAll(payload, out), nil
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, headerJSON)
	return append(out, payload...), nil
}

func (c *codec) decode(data []byte, target any) error {
	if len(data) == 0 {
		return errors.New("decode cache value: empty entry")
	}
	payload := data[1:]
	switch data[0] {
	case headerJSON:
	case headerZstd:
		decoded, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("decompress cache value: %w", err)
		}
		payload = decoded
	default:
		return fmt.Errorf("decode cache value: unknown header %q", data[0])
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}

func (c *codec) close() {
	if c.encoder != nil {
		_ = c.encoder.Close()
	}
	c.decoder.Close()
}
