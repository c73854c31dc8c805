package store

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type blobCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// codec is shared; EncodeAll and DecodeAll are safe for concurrent use.
var codec = sync.OnceValues(func() (*blobCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &blobCodec{encoder: enc, decoder: dec}, nil
})

func compressBlob(blob []byte) ([]byte, error) {
	c, err := codec()
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(blob, make([]byte, 0, len(blob)/2)), nil
}

func decompressBlob(data []byte) ([]byte, error) {
	c, err := codec()
	if err != nil {
		return nil, err
	}
	blob, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing blob: %w", err)
	}
	return blob, nil
}
