package looper

// Ramp is a linear crossfade gain. Each Advance moves Gain by Inc; when the
// gain reaches 0 or 1 it is clamped there and Inc is reset to 0.
type Ramp struct {
	Gain float64
	Inc  float64
}

// Start restarts the ramp from silence towards unity.
func (r *Ramp) Start(step float64) {
	r.Gain = 0
	r.Inc = step
}

// FadeIn moves towards unity from the current gain.
func (r *Ramp) FadeIn(step float64) { r.Inc = step }

// FadeOut moves towards silence from the current gain.
func (r *Ramp) FadeOut(step float64) { r.Inc = -step }

// Moving reports whether a fade is still in flight.
func (r *Ramp) Moving() bool { return r.Inc != 0 }

// Halt stops the ramp at its current gain.
func (r *Ramp) Halt() { r.Inc = 0 }

// Advance applies one sample worth of increment.
func (r *Ramp) Advance() {
	if r.Inc == 0 {
		return
	}
	r.Gain += r.Inc
	if r.Gain >= 1 {
		r.Gain = 1
		r.Inc = 0
	} else if r.Gain <= 0 {
		r.Gain = 0
		r.Inc = 0
	}
}
