// Package looper implements a sample-accurate loop recorder and player meant to
// run inside a host's block callback. A Looper is single-threaded: Process must
// not be called concurrently and never allocates once the scratch space covers
// the host's block size.
package looper

import (
	"errors"
	"time"
)

const (
	// DefaultFadeTime is the crossfade applied to every transition.
	DefaultFadeTime = time.Millisecond
	// DefaultTriggerThreshold is the input magnitude that starts a detected take.
	DefaultTriggerThreshold = 0.005
	// DefaultMaxDuration bounds the loop store.
	DefaultMaxDuration = 60 * time.Second
	// DefaultMaxBlockSize sizes the detector scratch space.
	DefaultMaxBlockSize = 4096
)

// Params is one snapshot of the host control surface.
type Params struct {
	Record  bool
	Play    bool
	Clear   bool // edge-triggered: every change clears the loop
	Trigger TriggerMode
	Mode    RecordMode
	Snap    SnapMode
	Reverse bool
	Mix     float64 // 0 = input only, 1 = loop playback only
}

// DefaultParams mirrors the host defaults: play armed, record stopped,
// loop-over mode, half mix.
func DefaultParams() Params {
	return Params{Play: true, Mix: 0.5}
}

// Block is the unit of work handed over by the host. Samples holds one slice
// per channel; it is read as input and overwritten with the mixed output.
type Block struct {
	Samples   [][]float32
	Begin     Params
	End       Params
	Transport *Transport
}

// Frames returns the number of samples per channel in the block. Channels of
// unequal length are processed up to the shortest one.
func (b *Block) Frames() int {
	if len(b.Samples) == 0 {
		return 0
	}
	n := len(b.Samples[0])
	for _, ch := range b.Samples[1:] {
		n = min(n, len(ch))
	}
	return n
}

type Option func(*config)

type config struct {
	channels     int
	maxDuration  time.Duration
	fadeTime     time.Duration
	threshold    float64
	maxBlockSize int
}

func defaultConfig() config {
	return config{
		channels:     2,
		maxDuration:  DefaultMaxDuration,
		fadeTime:     DefaultFadeTime,
		threshold:    DefaultTriggerThreshold,
		maxBlockSize: DefaultMaxBlockSize,
	}
}

func WithChannels(n int) Option {
	return func(cfg *config) { cfg.channels = n }
}

// WithMaxDuration sets the loop store capacity.
func WithMaxDuration(d time.Duration) Option {
	return func(cfg *config) { cfg.maxDuration = d }
}

// WithFadeTime sets the transition crossfade length.
func WithFadeTime(d time.Duration) Option {
	return func(cfg *config) { cfg.fadeTime = d }
}

// WithTriggerThreshold sets the magnitude used by TriggerDetect.
func WithTriggerThreshold(v float64) Option {
	return func(cfg *config) { cfg.threshold = v }
}

// WithMaxBlockSize pre-allocates scratch space for blocks up to n samples.
func WithMaxBlockSize(n int) Option {
	return func(cfg *config) { cfg.maxBlockSize = n }
}

// Looper is one loop recorder instance.
type Looper struct {
	sampleRate int
	fade       int     // crossfade length in samples
	step       float64 // per-sample ramp increment, 1/fade
	buf        *Buffer
	det        *detector

	loopLen     int
	playIndex   int
	recordIndex int
	play        Ramp
	rec         Ramp

	recording, playing, reverse bool
	recordArmed, playArmed      bool
	reverseArmed                bool
	triggered                   bool

	mode    RecordMode
	snap    SnapMode
	trigger TriggerMode

	applied     Params
	appliedOnce bool
	status      Status
}

func New(sampleRate int, opts ...Option) (*Looper, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.channels <= 0 {
		return nil, errors.New("channel count must be positive")
	}
	capacity := int(cfg.maxDuration.Seconds() * float64(sampleRate))
	if capacity <= 0 {
		return nil, errors.New("max duration must cover at least one sample")
	}
	fade := int(cfg.fadeTime.Seconds() * float64(sampleRate))
	if fade < 1 {
		return nil, errors.New("fade time must cover at least one sample")
	}
	if cfg.maxBlockSize <= 0 {
		cfg.maxBlockSize = DefaultMaxBlockSize
	}
	return &Looper{
		sampleRate: sampleRate,
		fade:       fade,
		step:       1 / float64(fade),
		buf:        NewBuffer(cfg.channels, capacity),
		det:        newDetector(cfg.threshold, cfg.maxBlockSize),
	}, nil
}

func (l *Looper) SampleRate() int  { return l.sampleRate }
func (l *Looper) Channels() int    { return l.buf.Channels() }
func (l *Looper) Capacity() int    { return l.buf.Capacity() }
func (l *Looper) FadeSamples() int { return l.fade }
func (l *Looper) LoopLength() int  { return l.loopLen }
func (l *Looper) PlayIndex() int   { return l.playIndex }
func (l *Looper) RecordIndex() int { return l.recordIndex }

// Gains returns the current playback and record crossfade gains.
func (l *Looper) Gains() (playback, record float64) {
	return l.play.Gain, l.rec.Gain
}

// Status returns the status computed at the end of the last block.
func (l *Looper) Status() Status { return l.status }

// Close releases the loop store.
func (l *Looper) Close() {
	l.buf.Release()
}

// applyParams runs the block-boundary control logic. Without snap, every
// requested transition happens right away.
func (l *Looper) applyParams(p Params) {
	snap := l.snap

	l.reverseArmed = p.Reverse
	if snap == SnapNone {
		if l.reverseArmed {
			l.startReverse()
		} else {
			l.stopReverse()
		}
	}

	// a stop deferred by a snap that has since been dropped fires here too
	wasPlaying := l.playing
	l.playArmed = p.Play
	if !wasPlaying && l.playArmed && snap == SnapNone {
		l.startPlayback()
	}
	if wasPlaying && !l.playArmed && snap == SnapNone {
		l.stopPlayback()
	}

	wasRecording, wasArmed := l.recording, l.recordArmed
	l.recordArmed = p.Record
	l.trigger = p.Trigger
	l.mode = p.Mode
	if !wasArmed && l.recordArmed {
		l.triggered = false
	}
	hasLoop := l.loopLen != 0
	if !wasRecording && l.recordArmed &&
		(l.trigger == TriggerManual || hasLoop) &&
		(snap == SnapNone || (hasLoop && l.mode != RecordClear)) {
		l.startRecording()
	}
	if wasRecording && !l.recordArmed && snap == SnapNone {
		l.stopRecording()
	}

	if p.Clear != l.applied.Clear {
		l.clearLoop()
	}
}

// effectiveSnap forces SnapNone when the host cannot report its transport.
func effectiveSnap(p Params, tr *Transport) SnapMode {
	if tr == nil {
		return SnapNone
	}
	return p.Snap
}

// schedule computes the transition offsets of a block of n samples.
func (l *Looper) schedule(samples [][]float32, n int, tr *Transport) Schedule {
	s := emptySchedule()

	if !l.recording && l.loopLen == 0 && l.recordArmed && l.trigger == TriggerDetect && !l.triggered {
		if i := l.det.onset(samples, n); i >= 0 {
			s.StartRecord = i
			l.triggered = true
		} else {
			s.StartRecord = n
		}
	}

	from := 0
	if s.StartRecord > 0 {
		from = s.StartRecord
	}
	off, ok := NextSnapOffset(l.snap, tr, from, float64(l.sampleRate))
	if !ok {
		return s
	}
	next := NoEvent
	if off >= 0 && off < int64(n) {
		next = int(off)
	}

	switch {
	case !l.recording && (l.loopLen == 0 || l.mode == RecordClear) && l.recordArmed:
		s.StartRecord = next
	case l.recording && !l.recordArmed:
		s.StopRecord = next
	}
	switch {
	case !l.playing && l.playArmed:
		s.StartPlay = next
	case l.playing && !l.playArmed:
		s.StopPlay = next
	}
	switch {
	case !l.reverse && l.reverseArmed:
		s.StartReverse = next
	case l.reverse && !l.reverseArmed:
		s.StopReverse = next
	}
	return s
}

// Process runs one block: control update, scheduling, then the per-sample
// driver. Samples are replaced by the mixed output.
func (l *Looper) Process(b *Block) Status {
	n := b.Frames()
	l.snap = effectiveSnap(b.Begin, b.Transport)

	p := b.Begin
	p.Snap = l.snap
	if !l.appliedOnce || p != l.applied {
		l.applyParams(p)
		l.applied = p
		l.appliedOnce = true
	}
	if n == 0 {
		l.updateStatus()
		return l.status
	}

	s := l.schedule(b.Samples, n, b.Transport)
	mix := b.Begin.Mix
	mixInc := (b.End.Mix - b.Begin.Mix) / float64(n)
	channels := min(len(b.Samples), l.buf.Channels())

	for i := 0; i < n; i++ {
		if i == s.StartRecord {
			l.startRecording()
		} else if i == s.StopRecord {
			l.stopRecording()
		}
		if i == s.StartPlay {
			l.startPlayback()
		} else if i == s.StopPlay {
			l.stopPlayback()
		}
		if i == s.StartReverse {
			l.startReverse()
		} else if i == s.StopReverse {
			l.stopReverse()
		}

		playingNow := l.isPlayingNow()
		writing := l.writing()
		for c := 0; c < channels; c++ {
			loop := l.buf.Channel(c)
			in := float64(b.Samples[c][i])
			playback := 0.0
			if playingNow {
				playback = l.readPlayback(loop)
			}
			// playback is read before the write: both heads may share an index
			if writing {
				loop[l.recordIndex] = float32(playback + l.rec.Gain*in)
			}
			b.Samples[c][i] = float32(in + mix*(playback-in))
		}

		if playingNow {
			l.advancePlayHead()
		}
		if writing {
			l.advanceRecordHead()
		}
		l.play.Advance()
		l.rec.Advance()
		mix += mixInc
	}
	l.updateStatus()
	return l.status
}
