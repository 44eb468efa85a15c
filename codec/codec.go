// Package codec turns cached pages into bytes and back.
//
// pagestore stores caslist.Page[T] values, so most callers pick one of
// JSON[caslist.Page[T]], Msgpack[caslist.Page[T]] or CBOR[caslist.Page[T]].
// Page.Metadata round-trips as whatever the format decodes an untyped value
// into (maps, slices, float64 or int64); keep it to plain data.
package codec

// Codec encodes and decodes V for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
