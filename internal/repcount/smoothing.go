package repcount

// Smoother is an exponential moving average. Alpha is the weight kept from the
// previous value, so larger alphas smooth harder.
type Smoother struct {
	alpha  float64
	value  float64
	primed bool
}

// NewSmoother returns a Smoother; alpha outside [0,1) falls back to the default.
func NewSmoother(alpha float64) *Smoother {
	if alpha < 0 || alpha >= 1 {
		alpha = DefaultSmoothingAlpha
	}
	return &Smoother{alpha: alpha}
}

// Update folds raw into the average and returns the new value. The first
// sample seeds the average.
func (s *Smoother) Update(raw float64) float64 {
	if !s.primed {
		s.value = raw
		s.primed = true
		return s.value
	}
	s.value = s.alpha*s.value + (1-s.alpha)*raw
	return s.value
}

// Value returns the current average.
func (s *Smoother) Value() float64 {
	return s.value
}

// Reset forgets all history.
func (s *Smoother) Reset() {
	s.value = 0
	s.primed = false
}

// window keeps the last n smoothed angles for steadiness checks.
type window struct {
	buf  []float64
	next int
	full bool
}

func newWindow(n int) *window {
	return &window{buf: make([]float64, n)}
}

func (w *window) push(v float64) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

// spread returns max-min over the window, and false until it has filled.
func (w *window) spread() (float64, bool) {
	if !w.full {
		return 0, false
	}
	lo, hi := w.buf[0], w.buf[0]
	for _, v := range w.buf[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return hi - lo, true
}

func (w *window) reset() {
	w.next = 0
	w.full = false
}
