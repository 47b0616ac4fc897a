package source

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Entry is one raw record fetched from a partition.
type Entry struct {
	Data []byte
	// Offset is the source token of this entry.
	Offset string
}

// Source is an unbounded, partitioned byte-record feed.
type Source interface {
	ListPartitions(ctx context.Context) ([]string, error)
	// FetchBatch returns entries starting at pos, waiting at most maxWait for
	// data, and the position to fetch from next. An empty batch returns pos
	// unchanged (or its resolved form).
	FetchBatch(ctx context.Context, partition string, pos Position, maxWait time.Duration) ([]Entry, Position, error)
}

type PositionKind uint8

const (
	PositionEarliest PositionKind = iota
	PositionLatest
	PositionToken
)

func (k PositionKind) String() string {
	switch k {
	case PositionEarliest:
		return "earliest"
	case PositionLatest:
		return "latest"
	case PositionToken:
		return "token"
	default:
		return "unknown"
	}
}

// Position names where a partition read resumes.
type Position struct {
	Kind  PositionKind
	Token string
}

func Earliest() Position {
	return Position{Kind: PositionEarliest}
}

func Latest() Position {
	return Position{Kind: PositionLatest}
}

func At(token string) Position {
	return Position{Kind: PositionToken, Token: token}
}

// AtOffset is At for sources whose tokens are decimal offsets.
func AtOffset(offset int64) Position {
	return At(strconv.FormatInt(offset, 10))
}

func (p Position) String() string {
	if p.Kind == PositionToken {
		return p.Token
	}
	return p.Kind.String()
}

func (p Position) Equal(o Position) bool {
	return p.Kind == o.Kind && p.Token == o.Token
}

// ParsePosition accepts "earliest", "latest" or a source token.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "earliest", "":
		return Earliest(), nil
	case "latest":
		return Latest(), nil
	default:
		return At(s), nil
	}
}

// Offset decodes a decimal offset token; earliest and latest have none.
func (p Position) Offset() (int64, error) {
	if p.Kind != PositionToken {
		return 0, fmt.Errorf("position %s has no offset", p)
	}
	n, err := strconv.ParseInt(p.Token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("position %q is not an offset: %w", p.Token, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("position %q is negative", p.Token)
	}
	return n, nil
}
