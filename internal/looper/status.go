package looper

// Status is the host-facing metering state after a block.
type Status struct {
	Playing    bool
	Recording  bool
	PlayHead   float64 // normalized play position in [0,1)
	RecordHead float64 // normalized record position in [0,1]
	LoopFill   float64 // 1 once a full loop exists, else the recorded fraction
}

// Values returns the status as host output parameters, in the order
// play, record, play head, record head, loop fill.
func (s Status) Values() [5]float64 {
	return [5]float64{boolValue(s.Playing), boolValue(s.Recording), s.PlayHead, s.RecordHead, s.LoopFill}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (l *Looper) updateStatus() {
	s := Status{
		Playing:   l.isPlayingNow() && l.loopLen != 0,
		Recording: l.recording,
	}
	if l.loopLen > 0 {
		idx := l.playIndex
		if l.reverse {
			idx = l.loopLen - 1 - idx
		}
		s.PlayHead = float64(idx) / float64(l.loopLen)
	}
	switch {
	case l.recording && l.loopLen != 0:
		s.RecordHead = min(float64(l.recordIndex)/float64(l.loopLen), 1)
	case l.recording:
		s.RecordHead = 1
	}
	if l.loopLen != 0 {
		s.LoopFill = 1
		if l.recording && l.recordIndex > l.loopLen {
			s.LoopFill = float64(l.loopLen) / float64(l.recordIndex)
		}
	}
	l.status = s
}
