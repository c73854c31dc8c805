package portable

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/minio/highwayhash"
	"github.com/viant/bintly"

	"github.com/praetorian-inc/hsmatch/pkg/engine"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

const (
	blobMagic = "HSMP"
	blobEnd   = "END"

	// blobFormat changes whenever the payload layout does.
	blobFormat uint32 = 1

	checksumLen = 8

	// minPatternBytes is a lower bound on one encoded pattern, used to reject
	// absurd counts before allocating.
	minPatternBytes = 4 + 4 + 4 + 8*4
)

// bintlySections lists the sections of a bintly stream in the order
// Reader.FromBytes loads them, with the element width of each. A section is a
// one-byte codec, a native-endian 32-bit element count, then the elements.
var bintlySections = []struct {
	codec byte
	width uint64
}{
	{1, 4},                 // alloc
	{2, 2},                 // malloc
	{3, bits.UintSize / 8}, // ints
	{13, 8},                // float64s
	{12, 1},                // uint8s
	{7, 4},                 // int32s
	{8, 4},                 // uint32s
	{14, 4},                // float32s
	{4, bits.UintSize / 8}, // uints
	{5, 8},                 // int64s
	{6, 8},                 // uint64s
	{9, 2},                 // int16s
	{10, 2},                // uint16s
	{11, 1},                // int8s
}

const bintlyEOF = 0

// checkSections walks the section headers of a bintly stream and rejects any
// count that does not fit in the payload. FromBytes allocates each section
// from its declared count before reading it.
func checkSections(payload []byte) error {
	off := uint64(0)
	n := uint64(len(payload))
	for _, sec := range bintlySections {
		if off >= n {
			return fmt.Errorf("section header at %d past end", off)
		}
		switch payload[off] {
		case bintlyEOF:
			return nil
		case sec.codec:
		default:
			continue
		}
		if off+5 > n {
			return fmt.Errorf("section %d truncated", sec.codec)
		}
		count := uint64(binary.NativeEndian.Uint32(payload[off+1:]))
		off += 5
		if count > (n-off)/sec.width {
			return fmt.Errorf("section %d declares %d elements", sec.codec, count)
		}
		off += count * sec.width
	}
	if off >= n || payload[off] != bintlyEOF {
		return fmt.Errorf("missing end of stream at %d", off)
	}
	return nil
}

var checksumKey = []byte("hsmatch/portable/blob/checksum/k")

var (
	writers = bintly.NewWriters()
	readers = bintly.NewReaders()
)

func checksum(payload []byte) uint64 {
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		panic(fmt.Sprintf("highwayhash key: %v", err)) // key length is a constant
	}
	_, _ = h.Write(payload)
	return h.Sum64()
}

// encode writes the payload followed by an 8-byte checksum trailer.
func encode(d *database) []byte {
	w := writers.Get()
	defer writers.Put(w)

	w.String(blobMagic)
	w.Uint32(blobFormat)
	w.String(Version)
	w.Uint32(uint32(d.mode))
	w.Uint32(d.platform.Tune)
	w.Uint32(d.platform.CPUFeatures)
	w.Uint32(d.platform.Reserved1)
	w.Uint32(d.platform.Reserved2)
	w.Uint32(uint32(len(d.patterns)))
	for _, p := range d.patterns {
		w.String(p.expression)
		w.Uint32(p.flags)
		w.Uint32(p.id)
		var ext types.ExprExt
		if p.ext != nil {
			ext = *p.ext
		}
		w.Uint64(ext.Flags)
		w.Uint64(ext.MinOffset)
		w.Uint64(ext.MaxOffset)
		w.Uint64(ext.MinLength)
	}
	w.String(blobEnd)

	payload := w.Bytes()
	blob := make([]byte, len(payload)+checksumLen)
	copy(blob, payload)
	binary.BigEndian.PutUint64(blob[len(payload):], checksum(payload))
	return blob
}

// header is the fixed prefix of a blob.
type header struct {
	magic    string
	format   uint32
	version  string
	mode     types.Mode
	platform types.Platform
}

// storedPattern is a pattern as recorded in a blob, before recompilation.
type storedPattern struct {
	expression string
	flags      uint32
	id         uint32
	ext        *types.ExprExt
}

// decode verifies and parses a blob. It never panics on malformed input.
func decode(blob []byte) (h header, patterns []storedPattern, err error) {
	if len(blob) <= checksumLen {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}
	payload := blob[:len(blob)-checksumLen]
	if binary.BigEndian.Uint64(blob[len(payload):]) != checksum(payload) {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}

	defer func() {
		if r := recover(); r != nil {
			err = engine.OpError("deserialize", engine.CodeInvalid)
		}
	}()

	if err := checkSections(payload); err != nil {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}

	r := readers.Get()
	defer readers.Put(r)
	if err := r.FromBytes(payload); err != nil {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}

	r.String(&h.magic)
	if h.magic != blobMagic {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}
	r.Uint32(&h.format)
	if h.format != blobFormat {
		return h, nil, engine.OpError("deserialize", engine.CodeDBVersionError)
	}
	r.String(&h.version)
	var mode uint32
	r.Uint32(&mode)
	h.mode = types.Mode(mode)
	r.Uint32(&h.platform.Tune)
	r.Uint32(&h.platform.CPUFeatures)
	r.Uint32(&h.platform.Reserved1)
	r.Uint32(&h.platform.Reserved2)

	var count uint32
	r.Uint32(&count)
	if uint64(count)*minPatternBytes > uint64(len(payload)) {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}

	patterns = make([]storedPattern, count)
	for i := range patterns {
		p := &patterns[i]
		r.String(&p.expression)
		r.Uint32(&p.flags)
		r.Uint32(&p.id)
		var ext types.ExprExt
		r.Uint64(&ext.Flags)
		r.Uint64(&ext.MinOffset)
		r.Uint64(&ext.MaxOffset)
		r.Uint64(&ext.MinLength)
		if ext.Flags != 0 {
			p.ext = &ext
		}
	}
	var end string
	r.String(&end)
	if end != blobEnd {
		return h, nil, engine.OpError("deserialize", engine.CodeInvalid)
	}
	return h, patterns, nil
}
