package looperfx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	intaudio "github.com/cbegin/looperfx-go/internal/audio"
	"github.com/cbegin/looperfx-go/internal/control"
	"github.com/cbegin/looperfx-go/internal/effects"
	"github.com/cbegin/looperfx-go/internal/looper"
	"github.com/cbegin/looperfx-go/internal/transport"
)

// Source provides the looper's input one block at a time. dst holds one
// slice per channel; Fill overwrites all of it.
type Source interface {
	Fill(dst [][]float32)
}

// EventKind identifies a state change reported through Watch.
type EventKind int

const (
	EventRecordStarted EventKind = iota
	EventRecordStopped
	EventPlayStarted
	EventPlayStopped
	EventLoopChanged
)

func (k EventKind) String() string {
	switch k {
	case EventRecordStarted:
		return "record started"
	case EventRecordStopped:
		return "record stopped"
	case EventPlayStarted:
		return "play started"
	case EventPlayStopped:
		return "play stopped"
	case EventLoopChanged:
		return "loop changed"
	}
	return "unknown"
}

// Event carries a state change and the status at the end of the block that
// caused it.
type Event struct {
	Kind       EventKind
	Status     looper.Status
	LoopLength int // samples
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	channels   int
	tempo      *control.Tempo
	input      Source
	preset     *control.Preset
	statusTap  func(looper.Status)
	limiterDB  *float64
	bufferSize time.Duration
}

func WithChannels(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.channels = n
	}
}

// WithTempo runs an internal transport clock so snap modes have a grid.
// Without it the looper sees no transport and never snaps.
func WithTempo(bpm float64, top, bottom uint) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.tempo = &control.Tempo{BPM: bpm, Top: top, Bottom: bottom}
	}
}

// WithInput sets the block input. The default is silence.
func WithInput(src Source) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.input = src
	}
}

// WithPreset sets the initial controls, the engine tuning and, when the preset
// has one, the tempo.
func WithPreset(p control.Preset) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.preset = &p
	}
}

// WithStatusTap installs a callback invoked with the status after every block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithStatusTap(tap func(looper.Status)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.statusTap = tap
	}
}

// WithLimiter limits the mixed output at thresholdDB.
func WithLimiter(thresholdDB float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.limiterDB = &thresholdDB
	}
}

// WithBufferSize sets the output device buffer used by Start.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.bufferSize = d
	}
}

// Player hosts a looper in real time: it delivers control changes at block
// boundaries, runs the transport clock, feeds input and reports state changes.
type Player struct {
	sampleRate int
	bufferSize time.Duration

	mu      sync.Mutex // guards params, status and loopLen
	params  looper.Params
	status  looper.Status
	loopLen int

	procMu  sync.Mutex // guards everything the audio thread owns
	looper  *looper.Looper
	clock   *transport.Clock
	input   Source
	limiter *effects.Limiter
	tap     func(looper.Status)
	lastMix float64
	block   [][]float32
	closed  bool

	audio     *intaudio.Player
	eventCh   chan Event
	eventChMu sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := playerConfig{channels: 2}
	for _, opt := range opts {
		opt(&cfg)
	}
	params := looper.DefaultParams()
	var looperOpts []looper.Option
	if cfg.preset != nil {
		var err error
		if params, err = cfg.preset.Params(); err != nil {
			return nil, err
		}
		looperOpts = cfg.preset.LooperOptions()
		if cfg.tempo == nil {
			cfg.tempo = cfg.preset.Tempo
		}
	}
	maxBlock := intaudio.MaxReadFrames
	if cfg.preset != nil {
		maxBlock = max(maxBlock, cfg.preset.Engine.MaxBlockSize)
	}
	looperOpts = append(looperOpts, looper.WithChannels(cfg.channels), looper.WithMaxBlockSize(maxBlock))
	l, err := looper.New(sampleRate, looperOpts...)
	if err != nil {
		return nil, err
	}
	p := &Player{
		sampleRate: sampleRate,
		bufferSize: cfg.bufferSize,
		params:     params,
		looper:     l,
		input:      cfg.input,
		tap:        cfg.statusTap,
		lastMix:    params.Mix,
	}
	p.scratch(maxBlock)
	if cfg.tempo != nil {
		if p.clock, err = transport.NewClock(sampleRate, cfg.tempo.BPM, cfg.tempo.Top, cfg.tempo.Bottom); err != nil {
			l.Close()
			return nil, err
		}
	}
	if cfg.limiterDB != nil {
		p.limiter = effects.NewLimiter(sampleRate, *cfg.limiterDB, 20, 1, 80)
	}
	return p, nil
}

func (p *Player) SampleRate() int { return p.sampleRate }
func (p *Player) Channels() int   { return p.looper.Channels() }

// Start opens the output stream and begins playback.
func (p *Player) Start() error {
	p.procMu.Lock()
	closed := p.closed
	p.procMu.Unlock()
	if closed {
		return errors.New("player is closed")
	}
	if p.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(p.sampleRate, p, p.bufferSize)
	if err != nil {
		return err
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

// Stop closes the output stream and releases the looper. The player cannot be
// restarted.
func (p *Player) Stop() error {
	var err error
	if p.audio != nil {
		err = p.audio.Close()
		p.audio = nil
	}
	p.procMu.Lock()
	if !p.closed {
		p.looper.Close()
		p.closed = true
	}
	p.procMu.Unlock()
	return err
}

// Watch returns a channel that receives state changes. The channel is
// buffered (cap 16) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (p *Player) Watch() <-chan Event {
	ch := make(chan Event, 16)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev Event) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Process renders interleaved stereo frames. A mono looper feeds both sides;
// extra looper channels are not heard.
func (p *Player) Process(dst []float32) {
	frames := len(dst) / 2
	p.procMu.Lock()
	defer p.procMu.Unlock()
	if p.closed {
		clear(dst)
		return
	}
	block := p.scratch(frames)
	if p.input != nil {
		p.input.Fill(block)
	} else {
		for _, ch := range block {
			clear(ch)
		}
	}
	p.runBlock(block)
	last := len(block) - 1
	for i := 0; i < frames; i++ {
		dst[i*2] = block[0][i]
		dst[i*2+1] = block[min(1, last)][i]
	}
}

// ProcessDuplex runs one block from device input to device output. Input
// channels beyond the looper's are ignored; missing ones repeat the last.
func (p *Player) ProcessDuplex(in, out [][]float32) {
	if len(out) == 0 {
		return
	}
	frames := len(out[0])
	p.procMu.Lock()
	defer p.procMu.Unlock()
	if p.closed {
		for _, ch := range out {
			clear(ch)
		}
		return
	}
	block := p.scratch(frames)
	for c, ch := range block {
		if len(in) == 0 {
			clear(ch)
			continue
		}
		copy(ch, in[min(c, len(in)-1)])
	}
	p.runBlock(block)
	for c, ch := range out {
		copy(ch, block[min(c, len(block)-1)])
	}
}

// scratch returns the per-channel block buffers, growing them only when the
// host asks for a bigger block than before.
func (p *Player) scratch(frames int) [][]float32 {
	if p.block == nil {
		p.block = make([][]float32, p.looper.Channels())
	}
	for c := range p.block {
		if cap(p.block[c]) < frames {
			p.block[c] = make([]float32, frames)
		}
		p.block[c] = p.block[c][:frames]
	}
	return p.block
}

// runBlock processes one block with procMu held.
func (p *Player) runBlock(block [][]float32) {
	p.mu.Lock()
	end := p.params
	p.mu.Unlock()

	begin := end
	begin.Mix = p.lastMix
	p.lastMix = end.Mix

	var tr *looper.Transport
	if p.clock != nil {
		tr = p.clock.Snapshot()
	}
	st := p.looper.Process(&looper.Block{Samples: block, Begin: begin, End: end, Transport: tr})
	if p.clock != nil && len(block) > 0 {
		p.clock.Advance(len(block[0]))
	}
	if p.limiter != nil {
		p.limiter.ProcessBlock(block)
	}
	p.publish(st, p.looper.LoopLength())
	if p.tap != nil {
		p.tap(st)
	}
}

// publish stores the block's status and reports what changed.
func (p *Player) publish(st looper.Status, loopLen int) {
	p.mu.Lock()
	prev, prevLen := p.status, p.loopLen
	p.status, p.loopLen = st, loopLen
	p.mu.Unlock()

	report := func(kind EventKind) {
		p.sendEvent(Event{Kind: kind, Status: st, LoopLength: loopLen})
	}
	if st.Recording != prev.Recording {
		if st.Recording {
			report(EventRecordStarted)
		} else {
			report(EventRecordStopped)
		}
	}
	if st.Playing != prev.Playing {
		if st.Playing {
			report(EventPlayStarted)
		} else {
			report(EventPlayStopped)
		}
	}
	if loopLen != prevLen {
		report(EventLoopChanged)
	}
}

func (p *Player) update(fn func(*looper.Params)) {
	p.mu.Lock()
	fn(&p.params)
	p.mu.Unlock()
}

func (p *Player) SetRecord(on bool)  { p.update(func(c *looper.Params) { c.Record = on }) }
func (p *Player) SetPlay(on bool)    { p.update(func(c *looper.Params) { c.Play = on }) }
func (p *Player) SetReverse(on bool) { p.update(func(c *looper.Params) { c.Reverse = on }) }
func (p *Player) ToggleRecord()      { p.update(func(c *looper.Params) { c.Record = !c.Record }) }
func (p *Player) TogglePlay()        { p.update(func(c *looper.Params) { c.Play = !c.Play }) }
func (p *Player) ToggleReverse()     { p.update(func(c *looper.Params) { c.Reverse = !c.Reverse }) }

// Clear erases the loop at the next block boundary.
func (p *Player) Clear() { p.update(func(c *looper.Params) { c.Clear = !c.Clear }) }

func (p *Player) SetMode(m looper.RecordMode) {
	p.update(func(c *looper.Params) { c.Mode = m })
}

func (p *Player) SetSnap(s looper.SnapMode) {
	p.update(func(c *looper.Params) { c.Snap = s })
}

func (p *Player) SetTrigger(t looper.TriggerMode) {
	p.update(func(c *looper.Params) { c.Trigger = t })
}

// SetParams replaces every control at once. Mix is clamped to [0,1].
func (p *Player) SetParams(params looper.Params) {
	params.Mix = max(0, min(1, params.Mix))
	p.update(func(c *looper.Params) { *c = params })
}

// SetMix sets the balance between input (0) and loop playback (1). The change
// is ramped across the next block.
func (p *Player) SetMix(mix float64) {
	mix = max(0, min(1, mix))
	p.update(func(c *looper.Params) { c.Mix = mix })
}

// Params returns the controls the next block will use.
func (p *Player) Params() looper.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// Status returns the status of the last processed block.
func (p *Player) Status() looper.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LoopLength returns the loop length in samples as of the last block.
func (p *Player) LoopLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopLen
}

var (
	errNoTransport = errors.New("player has no tempo; use WithTempo")
	errNoLimiter   = errors.New("player has no limiter; use WithLimiter")
)

// withClock runs fn on the transport clock between blocks.
func (p *Player) withClock(fn func(*transport.Clock)) error {
	p.procMu.Lock()
	defer p.procMu.Unlock()
	if p.clock == nil {
		return errNoTransport
	}
	fn(p.clock)
	return nil
}

func (p *Player) StartTransport() error {
	return p.withClock((*transport.Clock).Start)
}

func (p *Player) StopTransport() error {
	return p.withClock((*transport.Clock).Stop)
}

// ToggleTransport starts a stopped transport and stops a running one.
func (p *Player) ToggleTransport() error {
	return p.withClock(func(c *transport.Clock) {
		if c.Playing() {
			c.Stop()
		} else {
			c.Start()
		}
	})
}

// RewindTransport moves the song position back to the first downbeat.
func (p *Player) RewindTransport() error {
	return p.withClock((*transport.Clock).Rewind)
}

// SetTempo changes the transport tempo, keeping the sample position.
func (p *Player) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return errors.New("tempo must be positive")
	}
	return p.withClock(func(c *transport.Clock) { c.SetTempo(bpm) })
}

// Tempo returns the transport tempo, or false without one.
func (p *Player) Tempo() (float64, bool) {
	var bpm float64
	err := p.withClock(func(c *transport.Clock) { bpm = c.BPM() })
	return bpm, err == nil
}

// SetLimit changes the output limiter threshold in dB.
func (p *Player) SetLimit(db float64) error {
	if p.limiter == nil {
		return errNoLimiter
	}
	if db >= 0 {
		return fmt.Errorf("limit %v dB must be below 0", db)
	}
	p.limiter.SetThreshold(db)
	return nil
}

// Limit returns the limiter threshold in dB, or false without a limiter.
func (p *Player) Limit() (float64, bool) {
	if p.limiter == nil {
		return 0, false
	}
	return p.limiter.Threshold(), true
}

// Elapsed returns how much output the device has played since Start.
func (p *Player) Elapsed() time.Duration {
	if p.audio == nil {
		return 0
	}
	return p.audio.Position()
}

// Transport returns the transport the next block will see, or nil without a
// tempo.
func (p *Player) Transport() *looper.Transport {
	p.procMu.Lock()
	defer p.procMu.Unlock()
	if p.clock == nil {
		return nil
	}
	tr := *p.clock.Snapshot()
	return &tr
}
