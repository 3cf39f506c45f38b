package strategy

// Series is the derived view of a price history. X and Y are the sample
// times (Unix seconds) and prices; YPrime is the discrete derivative of the
// requested order and XPrime the times it is located at.
//
// A Series is recomputed wholesale from the history on every update and is
// never modified afterwards.
type Series struct {
	X      []float64
	Y      []float64
	XPrime []float64
	YPrime []float64
}

// Len returns the number of derived samples.
func (s Series) Len() int {
	return len(s.YPrime)
}

// Last returns the most recent derived sample. ok is false when the series
// is empty.
func (s Series) Last() (v float64, ok bool) {
	if len(s.YPrime) == 0 {
		return 0, false
	}
	return s.YPrime[len(s.YPrime)-1], true
}

// Derive computes the order-th derivative of y with respect to x. Each level
// is the first difference of the previous one, located at the midpoints of
// its intervals. Intervals with no elapsed time are dropped.
func Derive(x, y []float64, order int) Series {
	s := Series{
		X: append([]float64(nil), x...),
		Y: append([]float64(nil), y...),
	}
	if order < 1 {
		return s
	}

	xp, yp := s.X, s.Y
	for i := 0; i < order; i++ {
		xp, yp = Difference(xp, yp)
	}
	s.XPrime, s.YPrime = xp, yp
	return s
}

// Difference returns the first derivative of y with respect to x between
// consecutive samples: yp[i] = (y[i+1]-y[i]) / (x[i+1]-x[i]) located at
// xp[i] = (x[i]+x[i+1]) / 2.
//
// A zero-width interval (two samples sharing a timestamp) has no slope and
// is dropped instead of yielding Inf or NaN. The last defined slope then
// remains the latest signal until time advances.
func Difference(x, y []float64) (xp, yp []float64) {
	n := min(len(x), len(y))
	if n < 2 {
		return nil, nil
	}
	xp = make([]float64, 0, n-1)
	yp = make([]float64, 0, n-1)
	for i := 0; i+1 < n; i++ {
		dx := x[i+1] - x[i]
		if dx == 0 {
			continue
		}
		xp = append(xp, (x[i]+x[i+1])/2)
		yp = append(yp, (y[i+1]-y[i])/dx)
	}
	return xp, yp
}
