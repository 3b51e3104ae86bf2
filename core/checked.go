package core

import (
	"math"
	"math/bits"
)

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}

func checkedIncrement(v uint32) (uint32, error) {
	if v == math.MaxUint32 {
		return 0, ErrMathOverflow
	}
	return v + 1, nil
}

func checkedAddTime(now, duration int64) (int64, error) {
	if duration > 0 && now > math.MaxInt64-duration {
		return 0, ErrMathOverflow
	}
	return now + duration, nil
}
