// Package wire frames pagestore entries.
//
//	magic(4) "CLPG" | ver(1) | gen(u64 be) | storedAt(i64 be, unix nanos) | vlen(u32 be) | payload(vlen)
//
// The frame must span the whole buffer; trailing bytes are corruption.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	headerLen      = 4 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("caslist: corrupt page frame")
	magic      = [...]byte{'C', 'L', 'P', 'G'}
)

// Frame is a decoded entry. Payload aliases the input buffer.
type Frame struct {
	Gen      uint64
	StoredAt time.Time
	Payload  []byte
}

func Encode(gen uint64, storedAt time.Time, payload []byte) []byte {
	b := make([]byte, headerLen+len(payload))
	copy(b, magic[:])
	b[4] = version
	binary.BigEndian.PutUint64(b[5:13], gen)
	binary.BigEndian.PutUint64(b[13:21], uint64(storedAt.UnixNano()))
	binary.BigEndian.PutUint32(b[21:25], uint32(len(payload)))
	copy(b[headerLen:], payload)
	return b
}

func Decode(b []byte) (Frame, error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic[:]) || b[4] != version {
		return Frame{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[21:25]))
	if vlen != len(b)-headerLen {
		return Frame{}, ErrCorrupt
	}
	return Frame{
		Gen:      binary.BigEndian.Uint64(b[5:13]),
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[13:21]))),
		Payload:  b[headerLen:],
	}, nil
}
