package sat

// Add returns i + o, clamping to T's range on overflow or underflow.
func (i Int[T]) Add(o Int[T]) Int[T] {
	switch {
	case o.v > 0 && i.v > maxOf[T]()-o.v:
		return Max[T]()
	case o.v < 0 && i.v < minOf[T]()-o.v:
		return Min[T]()
	default:
		return Int[T]{v: i.v + o.v}
	}
}

// Sub returns i - o, clamping to T's range on overflow or underflow.
func (i Int[T]) Sub(o Int[T]) Int[T] {
	switch {
	case o.v > 0 && i.v < minOf[T]()+o.v:
		return Min[T]()
	case o.v < 0 && i.v > maxOf[T]()+o.v:
		return Max[T]()
	default:
		return Int[T]{v: i.v - o.v}
	}
}

// Mul returns i * o, clamping to T's range on overflow or underflow.
// The bound is checked by dividing it by one operand before
// multiplying, so the product itself is never allowed to wrap.
func (i Int[T]) Mul(o Int[T]) Int[T] {
	switch {
	case i.v == 0 || o.v == 0:
		return Int[T]{}
	case i.v > 0 && o.v > 0 && i.v > maxOf[T]()/o.v:
		return Max[T]()
	case i.v > 0 && o.v < 0 && o.v+1 != 0 && i.v > minOf[T]()/o.v:
		// Multiplying by -1 can never overflow here, and Min / -1
		// wraps, so it is excluded from the guard.
		return Min[T]()
	case i.v < 0 && o.v > 0 && i.v < minOf[T]()/o.v:
		return Min[T]()
	case i.v < 0 && o.v < 0 && i.v < maxOf[T]()/o.v:
		return Max[T]()
	default:
		return Int[T]{v: i.v * o.v}
	}
}

// Div returns i / o. Division by zero yields Max. For signed T,
// Min / -1 is the one quotient that does not fit in T and also
// yields Max.
func (i Int[T]) Div(o Int[T]) Int[T] {
	m := minOf[T]()
	switch {
	case o.v == 0:
		return Max[T]()
	case m != 0 && i.v == m && o.v+1 == 0:
		return Max[T]()
	default:
		return Int[T]{v: i.v / o.v}
	}
}

// Mod returns i % o. Remainder by zero yields Max. For signed T,
// Min % -1 yields 0, the mathematically correct remainder, without
// evaluating the quotient that would not fit.
func (i Int[T]) Mod(o Int[T]) Int[T] {
	m := minOf[T]()
	switch {
	case o.v == 0:
		return Max[T]()
	case m != 0 && i.v == m && o.v+1 == 0:
		return Int[T]{}
	default:
		return Int[T]{v: i.v % o.v}
	}
}

// Neg returns -i. For signed T, Min has no representable negation
// and is returned unchanged. For unsigned T, negating any nonzero
// value underflows and yields 0.
func (i Int[T]) Neg() Int[T] {
	m := minOf[T]()
	if m == 0 {
		return Int[T]{}
	}
	if i.v == m {
		return i
	}
	return Int[T]{v: -i.v}
}

// Inc increments i unless it already holds Max, in which case it is
// left unchanged. It returns the resulting value.
func (i *Int[T]) Inc() Int[T] {
	if i.v < maxOf[T]() {
		i.v++
	}
	return *i
}

// IncPost is like Inc but returns the value held before the
// increment.
func (i *Int[T]) IncPost() Int[T] {
	tmp := *i
	if i.v < maxOf[T]() {
		i.v++
	}
	return tmp
}

// Dec decrements i unless it already holds Min, in which case it is
// left unchanged. It returns the resulting value.
func (i *Int[T]) Dec() Int[T] {
	if i.v > minOf[T]() {
		i.v--
	}
	return *i
}

// DecPost is like Dec but returns the value held before the
// decrement.
func (i *Int[T]) DecPost() Int[T] {
	tmp := *i
	if i.v > minOf[T]() {
		i.v--
	}
	return tmp
}
