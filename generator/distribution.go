package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

var (
	ErrEmptyDistribution = errors.New("distribution needs at least one item")
	ErrInvalidWeight     = errors.New("distribution weights must be positive")
)

// Weighted pairs a value with its relative probability mass.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// W is shorthand for building a Weighted item.
func W[T any](value T, weight float64) Weighted[T] {
	return Weighted[T]{Value: value, Weight: weight}
}

// Distribution samples values with probability proportional to their weight.
type Distribution[T any] struct {
	values     []T
	cumulative []float64
	total      float64
}

func NewDistribution[T any](items ...Weighted[T]) (Distribution[T], error) {
	if len(items) == 0 {
		return Distribution[T]{}, ErrEmptyDistribution
	}

	d := Distribution[T]{
		values:     make([]T, len(items)),
		cumulative: make([]float64, len(items)),
	}
	for i, it := range items {
		if !(it.Weight > 0) {
			return Distribution[T]{}, fmt.Errorf("item %d weight %v: %w", i, it.Weight, ErrInvalidWeight)
		}
		d.total += it.Weight
		d.values[i] = it.Value
		d.cumulative[i] = d.total
	}
	return d, nil
}

// MustDistribution is NewDistribution for package-level defaults.
func MustDistribution[T any](items ...Weighted[T]) Distribution[T] {
	d, err := NewDistribution(items...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Distribution[T]) Len() int {
	return len(d.values)
}

// Values returns the items of d in declaration order.
func (d Distribution[T]) Values() []T {
	return append([]T(nil), d.values...)
}

// Sample draws one value using r.
func (d Distribution[T]) Sample(r *rand.Rand) T {
	x := r.Float64() * d.total
	i := sort.Search(len(d.cumulative), func(i int) bool { return d.cumulative[i] > x })
	if i == len(d.values) {
		i--
	}
	return d.values[i]
}
