package looper

// Record/play head transitions. All of them route gain changes through the
// ramps; only Clear resets length and positions instantly.

func (l *Looper) startRecording() {
	switch l.mode {
	case RecordClear:
		l.loopLen = 0
		l.playIndex = 0
	case RecordOverwrite:
		// keep the fade window so the old material crossfades out
		if n := l.playIndex + l.fade + 1; n < l.loopLen {
			l.loopLen = n
		}
	case RecordPunch:
		l.play.FadeOut(l.step)
	case RecordLoopOver, RecordExtend, RecordAppend:
	}
	l.recording = true
	l.recordIndex = l.playIndex
	l.rec.Start(l.step)
}

func (l *Looper) stopRecording() {
	// capacity may already have ended the take earlier in the block
	if !l.recording {
		return
	}
	l.recording = false
	l.rec.FadeOut(l.step)
	if l.recordIndex > l.loopLen {
		l.loopLen = l.recordIndex
		l.playIndex = 0
	}
	if l.mode == RecordPunch {
		l.play.FadeIn(l.step)
	}
}

func (l *Looper) startPlayback() {
	l.playing = true
	l.playIndex = 0
	l.play.Start(l.step)
}

func (l *Looper) stopPlayback() {
	l.playing = false
	l.play.FadeOut(l.step)
}

func (l *Looper) startReverse() {
	if !l.reverse && l.loopLen > 0 {
		l.playIndex = l.loopLen - 1 - l.playIndex
	}
	l.reverse = true
}

func (l *Looper) stopReverse() {
	if l.reverse && l.loopLen > 0 {
		l.playIndex = l.loopLen - 1 - l.playIndex
	}
	l.reverse = false
}

// clearLoop forgets the loop content.
func (l *Looper) clearLoop() {
	l.loopLen = 0
	l.recordIndex = 0
	l.playIndex = 0
	if l.recording && (!l.recordArmed || l.trigger == TriggerDetect || l.snap != SnapNone) {
		l.recording = false
		l.rec.FadeOut(l.step)
	}
}

// isPlayingNow reports whether the play head produces sound this sample. Playback
// is held back while a non-blending mode writes past the old loop end.
func (l *Looper) isPlayingNow() bool {
	if !l.playing && !l.play.Moving() {
		return false
	}
	return !(l.recording && l.mode.replacesPastEnd() && l.recordIndex > l.loopLen)
}

func (l *Looper) writing() bool {
	return (l.recording || l.rec.Moving()) && l.recordIndex < l.buf.Capacity()
}

// readPlayback returns the gained loop sample under the play head.
func (l *Looper) readPlayback(ch []float32) float64 {
	if l.loopLen == 0 {
		return 0
	}
	idx := l.playIndex
	if l.reverse {
		idx = l.loopLen - 1 - idx
	}
	return float64(ch[idx]) * l.play.Gain
}

// advancePlayHead moves the play head one sample and schedules the loop-edge
// crossfade.
func (l *Looper) advancePlayHead() {
	if l.loopLen == 0 {
		l.playIndex = 0
		l.play.Gain = 0
		return
	}
	l.playIndex++
	if l.playIndex >= l.loopLen {
		l.playIndex = 0
	}
	// punch recording owns the playback gain
	if !l.playing || (l.recording && l.mode == RecordPunch) {
		return
	}
	if l.playIndex == l.loopLen-l.fade {
		l.play.FadeOut(l.step)
	} else if l.playIndex < l.fade {
		l.play.FadeIn(l.step)
	}
}

// advanceRecordHead moves the write head one sample, wrapping or stopping at
// capacity as the record mode requires.
func (l *Looper) advanceRecordHead() {
	l.recordIndex++
	if l.mode.wraps() && l.loopLen > 0 && l.recordIndex >= l.loopLen {
		l.recordIndex = 0
	}
	if l.recordIndex >= l.buf.Capacity() {
		if l.recording {
			l.stopRecording()
		}
		// no tail writes past the end of the store
		l.rec.Gain = 0
		l.rec.Halt()
	}
}
