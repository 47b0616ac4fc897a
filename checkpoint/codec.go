package checkpoint

import (
	"fmt"
	"time"

	"github.com/hugolhafner/logstream/source"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPartition protowire.Number = 1
	fieldKind      protowire.Number = 2
	fieldToken     protowire.Number = 3
	fieldTickID    protowire.Number = 4
	fieldUpdatedAt protowire.Number = 5
)

// marshal encodes a checkpoint in protobuf wire format so fields can be
// added without breaking stored values.
func marshal(cp Checkpoint) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPartition, protowire.BytesType)
	b = protowire.AppendString(b, cp.Partition)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cp.Position.Kind))
	if cp.Position.Token != "" {
		b = protowire.AppendTag(b, fieldToken, protowire.BytesType)
		b = protowire.AppendString(b, cp.Position.Token)
	}
	b = protowire.AppendTag(b, fieldTickID, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(cp.TickID))
	if !cp.UpdatedAt.IsZero() {
		b = protowire.AppendTag(b, fieldUpdatedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(cp.UpdatedAt.UnixNano()))
	}
	return b
}

func unmarshal(b []byte) (Checkpoint, error) {
	var cp Checkpoint
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Checkpoint{}, fmt.Errorf("decode checkpoint tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPartition && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Checkpoint{}, fmt.Errorf("decode partition: %w", protowire.ParseError(n))
			}
			cp.Partition = v
			b = b[n:]
		case num == fieldToken && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Checkpoint{}, fmt.Errorf("decode token: %w", protowire.ParseError(n))
			}
			cp.Position.Token = v
			b = b[n:]
		case typ == protowire.VarintType && (num == fieldKind || num == fieldTickID || num == fieldUpdatedAt):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Checkpoint{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldKind:
				cp.Position.Kind = source.PositionKind(v)
			case fieldTickID:
				cp.TickID = protowire.DecodeZigZag(v)
			case fieldUpdatedAt:
				cp.UpdatedAt = time.Unix(0, protowire.DecodeZigZag(v))
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Checkpoint{}, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return cp, nil
}
