package sat

// Cast converts an Int with underlying type U into one with
// underlying type T, clamping into T's range. The range check is
// performed in a representation wide enough for both types' bounds
// before the value is narrowed: the source is split on its sign, and
// the negative side is compared in int64, the non-negative side in
// uint64. An extreme source value therefore can never wrap or alias
// during the check itself.
func Cast[T, U Integer](o Int[U]) Int[T] {
	if o.v < 0 {
		if int64(o.v) < int64(minOf[T]()) {
			return Min[T]()
		}
		return Int[T]{v: T(o.v)}
	}
	if uint64(o.v) > uint64(maxOf[T]()) {
		return Max[T]()
	}
	return Int[T]{v: T(o.v)}
}

// Aliases for the common instantiations.
type (
	I8  = Int[int8]
	I16 = Int[int16]
	I32 = Int[int32]
	I64 = Int[int64]

	U8  = Int[uint8]
	U16 = Int[uint16]
	U32 = Int[uint32]
	U64 = Int[uint64]
)
