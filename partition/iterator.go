package partition

import (
	"context"
	"io"
)

// Iterator yields partitions in order. Next returns io.EOF after the last one.
type Iterator interface {
	Next(ctx context.Context) (*Frame, error)
}

type sliceIterator struct {
	frames []*Frame
	pos    int
}

// NewSliceIterator iterates over frames already in memory.
func NewSliceIterator(frames ...*Frame) Iterator {
	return &sliceIterator{frames: frames}
}

func (it *sliceIterator) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.frames) {
		return nil, io.EOF
	}
	f := it.frames[it.pos]
	it.pos++
	return f, nil
}
