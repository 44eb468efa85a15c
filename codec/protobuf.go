package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"

	"github.com/unkn0wn-root/caslist"
)

// Protobuf encodes a single proto message. ctor returns a fresh message to
// decode into, e.g. func() *pb.User { return &pb.User{} }.
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	err := proto.Unmarshal(b, m)
	return m, err
}

// Field numbers of the page envelope written by ProtoPage.
const (
	pageFieldItem     protowire.Number = 1 // repeated bytes, one marshaled message each
	pageFieldTotal    protowire.Number = 2 // varint
	pageFieldHasTotal protowire.Number = 3 // bool
)

// ProtoPage encodes a page of proto messages as a small protobuf envelope:
//
//	message Page { repeated bytes item = 1; int64 total = 2; bool has_total = 3; }
//
// Page.Metadata is not stored.
type ProtoPage[M proto.Message] struct {
	ctor func() M
}

func NewProtoPage[M proto.Message](ctor func() M) ProtoPage[M] {
	return ProtoPage[M]{ctor: ctor}
}

var _ Codec[caslist.Page[proto.Message]] = ProtoPage[proto.Message]{}

func (c ProtoPage[M]) Encode(p caslist.Page[M]) ([]byte, error) {
	var b []byte
	opts := proto.MarshalOptions{Deterministic: true}
	for i, m := range p.Items {
		raw, err := opts.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("codec: page item %d: %w", i, err)
		}
		b = protowire.AppendTag(b, pageFieldItem, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	b = protowire.AppendTag(b, pageFieldTotal, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(p.Total)))
	if p.HasTotal {
		b = protowire.AppendTag(b, pageFieldHasTotal, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

func (c ProtoPage[M]) Decode(b []byte) (caslist.Page[M], error) {
	var p caslist.Page[M]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return caslist.Page[M]{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == pageFieldItem && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return caslist.Page[M]{}, protowire.ParseError(n)
			}
			m := c.ctor()
			if err := proto.Unmarshal(raw, m); err != nil {
				return caslist.Page[M]{}, fmt.Errorf("codec: page item %d: %w", len(p.Items), err)
			}
			p.Items = append(p.Items, m)
			b = b[n:]
		case (num == pageFieldTotal || num == pageFieldHasTotal) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return caslist.Page[M]{}, protowire.ParseError(n)
			}
			if num == pageFieldTotal {
				p.Total = int(int64(v))
			} else {
				p.HasTotal = protowire.DecodeBool(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return caslist.Page[M]{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return p, nil
}
