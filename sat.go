// Package sat provides fixed-width integers with saturating
// arithmetic.
//
// An Int behaves like its underlying integer type except that
// operations whose true result would fall outside the representable
// range clamp to the nearest bound instead of wrapping, and division
// or remainder by zero produces the maximum value instead of
// panicking. Every operation is total: no Int operation returns an
// error or panics. Callers that care whether saturation happened
// compare the result against Min and Max themselves.
//
// The intended use is arithmetic over sizes, offsets, and counts
// derived from untrusted binary input, where wraparound turns a
// malformed header into an out-of-bounds access.
package sat

import (
	"strconv"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Integer is a constraint for the underlying types that Int can
// wrap.
type Integer interface {
	constraints.Integer
}

// Int is an integer of underlying type T with saturating arithmetic.
// The zero value is the Int holding zero. Int is comparable; == and
// != compare the stored values.
type Int[T Integer] struct {
	v T
}

// New returns an Int holding v.
func New[T Integer](v T) Int[T] {
	return Int[T]{v: v}
}

// Value returns the stored value.
func (i Int[T]) Value() T { return i.v }

func (i Int[T]) String() string {
	if minOf[T]() != 0 {
		return strconv.FormatInt(int64(i.v), 10)
	}
	return strconv.FormatUint(uint64(i.v), 10)
}

// Min returns the Int holding T's minimum representable value.
func Min[T Integer]() Int[T] {
	return Int[T]{v: minOf[T]()}
}

// Max returns the Int holding T's maximum representable value.
func Max[T Integer]() Int[T] {
	return Int[T]{v: maxOf[T]()}
}

// minOf returns T's minimum value: zero for unsigned types, the most
// negative value for signed ones.
func minOf[T Integer]() (z T) {
	if ^z > z {
		return z
	}
	return T(1) << (unsafe.Sizeof(z)*8 - 1)
}

// maxOf returns T's maximum value.
func maxOf[T Integer]() T {
	if m := minOf[T](); m != 0 {
		return ^m
	}
	var z T
	return ^z
}

// Cmp returns -1 if i is less than o, 0 if they are equal, and 1 if
// i is greater than o.
func (i Int[T]) Cmp(o Int[T]) int {
	switch {
	case i.v < o.v:
		return -1
	case i.v > o.v:
		return 1
	default:
		return 0
	}
}

// Eq reports whether i and o hold the same value. It is equivalent
// to i == o.
func (i Int[T]) Eq(o Int[T]) bool { return i.v == o.v }

// Less reports whether i is less than o.
func (i Int[T]) Less(o Int[T]) bool { return i.v < o.v }

// LessEq reports whether i is less than or equal to o.
func (i Int[T]) LessEq(o Int[T]) bool { return i.v <= o.v }

// Greater reports whether i is greater than o.
func (i Int[T]) Greater(o Int[T]) bool { return i.v > o.v }

// GreaterEq reports whether i is greater than or equal to o.
func (i Int[T]) GreaterEq(o Int[T]) bool { return i.v >= o.v }
