package weighting

import "math/big"

// exactSum accumulates float64 values without rounding drift. Every float64
// has an exact rational representation, so the sum is exact until it is
// converted back.
type exactSum struct {
	r big.Rat
}

// add ignores non-finite values; callers validate inputs before summing.
func (s *exactSum) add(f float64) {
	var x big.Rat
	if x.SetFloat64(f) == nil {
		return
	}
	s.r.Add(&s.r, &x)
}

func (s *exactSum) float64() float64 {
	f, _ := s.r.Float64()
	return f
}

// round returns the sum rounded to the nearest integer, halves away from zero.
func (s *exactSum) round() int64 {
	num := new(big.Int).Abs(s.r.Num())
	den := s.r.Denom()

	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Lsh(rem, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if s.r.Sign() < 0 {
		q.Neg(q)
	}
	return q.Int64()
}
