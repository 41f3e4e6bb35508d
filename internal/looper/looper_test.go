package looper

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

const testRate = 44100 // 44 fade samples

func newTestLooper(t *testing.T, opts ...Option) *Looper {
	t.Helper()
	base := []Option{WithChannels(1), WithMaxDuration(2 * time.Second)}
	l, err := New(testRate, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	return l
}

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// run feeds n samples of constant input with a steady parameter snapshot.
func run(l *Looper, p Params, n int, v float32) []float32 {
	ch := filled(n, v)
	l.Process(&Block{Samples: [][]float32{ch}, Begin: p, End: p})
	return ch
}

// recordLoop records a first take of n samples and stops.
func recordLoop(t *testing.T, l *Looper, n int) {
	t.Helper()
	run(l, Params{Record: true, Mode: RecordClear}, n, 0.5)
	run(l, Params{Mode: RecordClear}, 0, 0)
	if got := l.LoopLength(); got != n {
		t.Fatalf("loop length = %d, want %d", got, n)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		rate int
		opts []Option
	}{
		{name: "zero rate", rate: 0},
		{name: "no channels", rate: testRate, opts: []Option{WithChannels(0)}},
		{name: "no capacity", rate: testRate, opts: []Option{WithMaxDuration(0)}},
		{name: "fade below one sample", rate: testRate, opts: []Option{WithFadeTime(time.Microsecond)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.rate, tc.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	l, err := New(testRate)
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	if l.FadeSamples() != 44 {
		t.Errorf("fade = %d, want 44", l.FadeSamples())
	}
	if l.Capacity() != 60*testRate {
		t.Errorf("capacity = %d, want %d", l.Capacity(), 60*testRate)
	}
	if l.Channels() != 2 {
		t.Errorf("channels = %d, want 2", l.Channels())
	}
	if l.LoopLength() != 0 {
		t.Errorf("loop length = %d, want 0", l.LoopLength())
	}
}

func TestStopRecordingAdoptsTake(t *testing.T) {
	l := newTestLooper(t)
	run(l, Params{Record: true}, 1000, 0.5)
	if got := l.RecordIndex(); got != 1000 {
		t.Fatalf("record index = %d, want 1000", got)
	}
	run(l, Params{}, 0, 0)
	if got := l.LoopLength(); got != 1000 {
		t.Fatalf("loop length = %d, want 1000", got)
	}
	if got := l.PlayIndex(); got != 0 {
		t.Fatalf("play index = %d, want 0", got)
	}
}

func TestLoopOverWrapsRecordHead(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	run(l, Params{Record: true, Mode: RecordLoopOver}, 2*1000+5, 0.1)
	if got := l.RecordIndex(); got != 5 {
		t.Fatalf("record index = %d, want 5", got)
	}
	if got := l.LoopLength(); got != 1000 {
		t.Fatalf("loop length changed to %d", got)
	}
}

func TestExtendGrowsLoop(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	p := Params{Record: true, Mode: RecordExtend}
	run(l, p, 1500, 0.1)
	st := l.Status()
	if math.Abs(st.LoopFill-1000.0/1500) > 1e-12 {
		t.Errorf("loop fill = %v, want %v", st.LoopFill, 1000.0/1500)
	}
	if st.RecordHead != 1 {
		t.Errorf("record head = %v, want capped at 1", st.RecordHead)
	}
	p.Record = false
	run(l, p, 0, 0)
	if got := l.LoopLength(); got != 1500 {
		t.Fatalf("loop length = %d, want 1500", got)
	}
	if got := l.PlayIndex(); got != 0 {
		t.Fatalf("play index = %d, want 0", got)
	}
}

func TestOverwriteTruncatesAtPlayHead(t *testing.T) {
	l := newTestLooper(t)
	l.loopLen = 100
	l.playIndex = 40
	l.mode = RecordOverwrite
	l.startRecording()
	if got := l.LoopLength(); got != 85 {
		t.Fatalf("loop length = %d, want 85", got)
	}
	if got := l.RecordIndex(); got != 40 {
		t.Fatalf("record index = %d, want 40", got)
	}
}

func TestOverwriteKeepsShorterLoop(t *testing.T) {
	l := newTestLooper(t)
	l.loopLen = 60
	l.playIndex = 40
	l.mode = RecordOverwrite
	l.startRecording()
	if got := l.LoopLength(); got != 60 {
		t.Fatalf("loop length = %d, want 60", got)
	}
}

func TestClearModeErasesOnStart(t *testing.T) {
	l := newTestLooper(t)
	l.loopLen = 500
	l.playIndex = 200
	l.mode = RecordClear
	l.startRecording()
	if l.LoopLength() != 0 || l.PlayIndex() != 0 || l.RecordIndex() != 0 {
		t.Fatalf("len=%d play=%d rec=%d, want all 0", l.LoopLength(), l.PlayIndex(), l.RecordIndex())
	}
}

func TestPunchMutesPlaybackWhileRecording(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	run(l, Params{Play: true, Mode: RecordPunch}, 200, 0)
	if g, _ := l.Gains(); g != 1 {
		t.Fatalf("playback gain before punch = %v, want 1", g)
	}
	run(l, Params{Play: true, Record: true, Mode: RecordPunch}, 100, 0.3)
	if g, _ := l.Gains(); g != 0 {
		t.Fatalf("playback gain during punch = %v, want 0", g)
	}
	run(l, Params{Play: true, Mode: RecordPunch}, 0, 0)
	if l.play.Inc <= 0 {
		t.Fatalf("playback ramp inc = %v after punch out, want fade in", l.play.Inc)
	}
	if got := l.LoopLength(); got != 1000 {
		t.Fatalf("punch changed loop length to %d", got)
	}
}

func TestNonBlendingModesHoldPlaybackPastLoopEnd(t *testing.T) {
	cases := []struct {
		mode RecordMode
		want bool
	}{
		{RecordOverwrite, false},
		{RecordAppend, false},
		{RecordLoopOver, true},
		{RecordExtend, true},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			l := newTestLooper(t)
			l.playing = true
			l.recording = true
			l.mode = tc.mode
			l.loopLen = 100
			l.recordIndex = 101
			if got := l.isPlayingNow(); got != tc.want {
				t.Fatalf("isPlayingNow = %v, want %v", got, tc.want)
			}
			l.recordIndex = 50
			if !l.isPlayingNow() {
				t.Fatal("playback must continue inside the old loop")
			}
		})
	}
}

func TestReverseTwiceRestoresPlayIndex(t *testing.T) {
	l := newTestLooper(t)
	l.loopLen = 100
	l.playIndex = 37
	l.startReverse()
	if got := l.PlayIndex(); got != 62 {
		t.Fatalf("mirrored play index = %d, want 62", got)
	}
	l.stopReverse()
	if got := l.PlayIndex(); got != 37 {
		t.Fatalf("play index = %d, want 37", got)
	}
}

func TestReverseParamMirrorsPlayHead(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	run(l, Params{Play: true}, 300, 0)
	before := l.PlayIndex()
	run(l, Params{Play: true, Reverse: true}, 0, 0)
	if got := l.PlayIndex(); got != 1000-1-before {
		t.Fatalf("play index = %d, want %d", got, 1000-1-before)
	}
	if got := l.Status().PlayHead; math.Abs(got-float64(before)/1000) > 1e-12 {
		t.Fatalf("reported play head = %v, want %v", got, float64(before)/1000)
	}
	run(l, Params{Play: true}, 0, 0)
	if got := l.PlayIndex(); got != before {
		t.Fatalf("play index = %d, want %d", got, before)
	}
}

func TestMixInterpolatesAcrossBlock(t *testing.T) {
	l := newTestLooper(t)
	ch := filled(4, 1)
	l.Process(&Block{
		Samples: [][]float32{ch},
		Begin:   Params{Mix: 0},
		End:     Params{Mix: 1},
	})
	want := []float32{1, 0.75, 0.5, 0.25} // input*(1-mix) with no loop
	for i := range want {
		if ch[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, ch[i], want[i])
		}
	}
}

func TestRecordThenPlayReproducesInput(t *testing.T) {
	l := newTestLooper(t)
	const block = 441
	rec := Params{Record: true, Mode: RecordClear}
	for i := 0; i < testRate/block; i++ {
		out := run(l, rec, block, 0.5)
		if out[0] != 0.5 {
			t.Fatalf("dry signal altered while recording: %v", out[0])
		}
	}
	run(l, Params{Mode: RecordClear}, block, 0)
	if got := l.LoopLength(); got != testRate {
		t.Fatalf("loop length = %d, want %d", got, testRate)
	}

	play := Params{Play: true, Mode: RecordClear, Mix: 1}
	var out []float32
	for i := 0; i < testRate/block; i++ {
		out = append(out, run(l, play, block, 0)...)
	}
	if out[0] != 0 {
		t.Fatalf("first playback sample = %v, want 0 (fade in)", out[0])
	}
	fade := l.FadeSamples()
	for i := 2 * fade; i < testRate-2*fade; i++ {
		if math.Abs(float64(out[i])-0.5) > 1e-6 {
			t.Fatalf("playback sample %d = %v, want 0.5", i, out[i])
		}
	}
	st := l.Status()
	if !st.Playing || st.Recording || st.LoopFill != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestCapacityForcesStop(t *testing.T) {
	l := newTestLooper(t, WithMaxDuration(10*time.Millisecond))
	capacity := l.Capacity()
	run(l, Params{Record: true, Mode: RecordClear}, capacity+500, 0.5)
	if l.Status().Recording {
		t.Fatal("recording should stop at capacity")
	}
	if got := l.LoopLength(); got != capacity {
		t.Fatalf("loop length = %d, want %d", got, capacity)
	}
	if got := l.RecordIndex(); got != capacity {
		t.Fatalf("record index = %d, want %d", got, capacity)
	}
	// an unchanged armed snapshot must not restart the take
	run(l, Params{Record: true, Mode: RecordClear}, 100, 0.5)
	if l.Status().Recording {
		t.Fatal("recording restarted without a control change")
	}
}

func TestClearTriggerIsEdgeDetected(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	run(l, Params{Clear: true}, 0, 0)
	if got := l.LoopLength(); got != 0 {
		t.Fatalf("loop length after clear = %d, want 0", got)
	}
	recordLoop(t, l, 300)
	run(l, Params{Mode: RecordClear}, 10, 0)
	if got := l.LoopLength(); got != 300 {
		t.Fatalf("loop length = %d, want 300", got)
	}
}

func TestAutoTriggerStartsAtOnset(t *testing.T) {
	l, err := New(testRate, WithChannels(2), WithMaxDuration(time.Second))
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	p := Params{Record: true, Trigger: TriggerDetect, Mode: RecordClear}
	quiet := [][]float32{make([]float32, 256), make([]float32, 256)}
	l.Process(&Block{Samples: quiet, Begin: p, End: p})
	if l.Status().Recording {
		t.Fatal("recording started on silence")
	}
	left, right := make([]float32, 256), make([]float32, 256)
	left[80] = 0.3
	right[30] = 0.1
	l.Process(&Block{Samples: [][]float32{left, right}, Begin: p, End: p})
	if !l.Status().Recording {
		t.Fatal("recording did not start on onset")
	}
	if got := l.RecordIndex(); got != 256-30 {
		t.Fatalf("record index = %d, want %d", got, 256-30)
	}
}

func TestSnapDefersRecordToQuarterNote(t *testing.T) {
	l, err := New(48000, WithChannels(1), WithMaxDuration(time.Second))
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	p := Params{Record: true, Mode: RecordClear, Snap: SnapQuarter}
	tr := &Transport{
		BPM:                    120,
		TimeSigTop:             4,
		TimeSigBottom:          4,
		PositionInSamples:      23800,
		PositionInQuarterNotes: 23800.0 / 24000,
		IsPlaying:              true,
	}
	l.Process(&Block{Samples: [][]float32{make([]float32, 512)}, Begin: p, End: p, Transport: tr})
	if !l.Status().Recording {
		t.Fatal("recording should start on the beat inside the block")
	}
	if got := l.RecordIndex(); got != 512-200 {
		t.Fatalf("record index = %d, want %d", got, 512-200)
	}
}

func TestSnapWaitsForRunningTransport(t *testing.T) {
	l, err := New(48000, WithChannels(1), WithMaxDuration(time.Second))
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	p := Params{Record: true, Mode: RecordClear, Snap: SnapMeasure}
	stopped := &Transport{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4}
	for i := 0; i < 4; i++ {
		l.Process(&Block{Samples: [][]float32{make([]float32, 256)}, Begin: p, End: p, Transport: stopped})
	}
	if l.Status().Recording {
		t.Fatal("recording must wait for the transport")
	}
	badSig := &Transport{BPM: 120, TimeSigTop: 4, IsPlaying: true}
	l.Process(&Block{Samples: [][]float32{make([]float32, 256)}, Begin: p, End: p, Transport: badSig})
	if l.Status().Recording {
		t.Fatal("recording must wait for a valid time signature")
	}
	running := &Transport{BPM: 120, TimeSigTop: 4, TimeSigBottom: 4, IsPlaying: true}
	l.Process(&Block{Samples: [][]float32{make([]float32, 256)}, Begin: p, End: p, Transport: running})
	if !l.Status().Recording || l.RecordIndex() != 256 {
		t.Fatalf("recording=%v index=%d, want started at the downbeat", l.Status().Recording, l.RecordIndex())
	}
}

func TestMissingTransportDisablesSnap(t *testing.T) {
	l := newTestLooper(t)
	run(l, Params{Record: true, Mode: RecordClear, Snap: SnapMeasure}, 128, 0.2)
	if got := l.RecordIndex(); got != 128 {
		t.Fatalf("record index = %d, want 128 (immediate start)", got)
	}
}

func TestStatusWhileFirstTake(t *testing.T) {
	l := newTestLooper(t)
	run(l, Params{Record: true}, 100, 0.5)
	st := l.Status()
	if !st.Recording || st.RecordHead != 1 || st.LoopFill != 0 || st.Playing {
		t.Fatalf("status = %+v", st)
	}
	v := st.Values()
	if v[0] != 0 || v[1] != 1 || v[3] != 1 {
		t.Fatalf("values = %v", v)
	}
}

func TestGainsStayInBoundsUnderRandomControl(t *testing.T) {
	l := newTestLooper(t, WithMaxDuration(50*time.Millisecond))
	rng := rand.New(rand.NewPCG(3, 5))
	p := DefaultParams()
	tr := &Transport{BPM: 140, TimeSigTop: 3, TimeSigBottom: 4, IsPlaying: true}
	for i := 0; i < 4000; i++ {
		switch rng.IntN(8) {
		case 0:
			p.Record = !p.Record
		case 1:
			p.Play = !p.Play
		case 2:
			p.Reverse = !p.Reverse
		case 3:
			p.Mode = RecordMode(rng.IntN(6))
		case 4:
			p.Snap = SnapMode(rng.IntN(3))
		case 5:
			p.Clear = !p.Clear
		}
		n := 1 + rng.IntN(64)
		ch := make([]float32, n)
		for j := range ch {
			ch[j] = float32(rng.Float64()*2 - 1)
		}
		l.Process(&Block{Samples: [][]float32{ch}, Begin: p, End: p, Transport: tr})
		tr.PositionInSamples += int64(n)
		tr.PositionInQuarterNotes = SamplesToQuarterNotes(float64(tr.PositionInSamples), tr.BPM, testRate)
		tr.CurrentMeasureDownbeat = math.Floor(tr.PositionInQuarterNotes/3) * 3

		pg, rg := l.Gains()
		if pg < 0 || pg > 1 || rg < 0 || rg > 1 {
			t.Fatalf("block %d: gains out of range play=%v rec=%v", i, pg, rg)
		}
		if l.RecordIndex() > l.Capacity() {
			t.Fatalf("block %d: record index %d beyond capacity %d", i, l.RecordIndex(), l.Capacity())
		}
		if l.LoopLength() > 0 && (l.PlayIndex() < 0 || l.PlayIndex() >= l.LoopLength()) {
			t.Fatalf("block %d: play index %d outside loop of %d", i, l.PlayIndex(), l.LoopLength())
		}
	}
}

func TestCapacityStopBeforeSnappedStopInSameBlock(t *testing.T) {
	l, err := New(48000, WithChannels(1), WithMaxDuration(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	if l.Capacity() != 480 {
		t.Fatalf("capacity = %d, want 480", l.Capacity())
	}
	rec := Params{Record: true, Mode: RecordClear}
	l.Process(&Block{Samples: [][]float32{filled(400, 0.5)}, Begin: rec, End: rec})

	// the store fills at offset 80, the quarter-note stop falls at offset 100
	stop := Params{Mode: RecordClear, Snap: SnapQuarter}
	tr := &Transport{
		BPM:                    120,
		TimeSigTop:             4,
		TimeSigBottom:          4,
		PositionInSamples:      23900,
		PositionInQuarterNotes: 23900.0 / 24000,
		IsPlaying:              true,
	}
	l.Process(&Block{Samples: [][]float32{filled(256, 0.5)}, Begin: stop, End: stop, Transport: tr})
	if l.Status().Recording {
		t.Fatal("recording should have stopped at capacity")
	}
	if l.LoopLength() != 480 || l.RecordIndex() != 480 {
		t.Fatalf("loop length = %d, record index = %d, want 480/480", l.LoopLength(), l.RecordIndex())
	}
	if _, rg := l.Gains(); rg != 0 {
		t.Fatalf("record gain = %v, want 0 after capacity stop", rg)
	}
}

func TestPlayStopFiresWhenSnapIsDropped(t *testing.T) {
	l := newTestLooper(t)
	recordLoop(t, l, 1000)
	run(l, Params{Play: true, Mode: RecordClear}, 100, 0)
	if !l.Status().Playing {
		t.Fatal("playback should start without snap")
	}

	// next downbeat is 77175 samples away
	deferred := Params{Mode: RecordClear, Snap: SnapMeasure}
	tr := &Transport{
		BPM:                    120,
		TimeSigTop:             4,
		TimeSigBottom:          4,
		PositionInSamples:      11025,
		PositionInQuarterNotes: 0.5,
		IsPlaying:              true,
	}
	ch := make([]float32, 256)
	l.Process(&Block{Samples: [][]float32{ch}, Begin: deferred, End: deferred, Transport: tr})
	if !l.Status().Playing {
		t.Fatal("stop should wait for the downbeat")
	}

	run(l, Params{Mode: RecordClear}, 256, 0)
	if l.playing || l.Status().Playing {
		t.Fatalf("play disarmed with snap off but still playing: %+v", l.Status())
	}
}

func TestReverseWithoutLoopKeepsPlayHead(t *testing.T) {
	l := newTestLooper(t)
	out := run(l, Params{Play: true, Reverse: true}, 64, 0.25)
	if !l.reverse {
		t.Fatal("reverse should be engaged")
	}
	if got := l.PlayIndex(); got != 0 {
		t.Fatalf("play index = %d, want 0 with no loop", got)
	}
	if out[10] != 0.25 {
		t.Fatalf("output = %v, want dry input 0.25", out[10])
	}
	run(l, Params{Play: true}, 0, 0)
	if got := l.PlayIndex(); got != 0 {
		t.Fatalf("play index = %d after reverse off, want 0", got)
	}
}

func TestRaggedBlockUsesShortestChannel(t *testing.T) {
	l, err := New(testRate, WithChannels(2), WithMaxDuration(time.Second))
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	p := Params{Record: true}
	b := &Block{Samples: [][]float32{filled(128, 0.5), filled(100, 0.5)}, Begin: p, End: p}
	if n := b.Frames(); n != 100 {
		t.Fatalf("frames = %d, want 100", n)
	}
	l.Process(b)
	if got := l.RecordIndex(); got != 100 {
		t.Fatalf("record index = %d, want 100", got)
	}
}

func TestGainsStayInBoundsAtEverySample(t *testing.T) {
	l := newTestLooper(t, WithMaxDuration(5*time.Millisecond))
	rng := rand.New(rand.NewPCG(11, 7))
	p := DefaultParams()
	tr := &Transport{BPM: 600, TimeSigTop: 7, TimeSigBottom: 8, IsPlaying: true}
	measure := 7.0 / 8 * 4
	ch := make([]float32, 1)
	for i := 0; i < 40000; i++ {
		if rng.IntN(16) == 0 {
			switch rng.IntN(6) {
			case 0:
				p.Record = !p.Record
			case 1:
				p.Play = !p.Play
			case 2:
				p.Reverse = !p.Reverse
			case 3:
				p.Mode = RecordMode(rng.IntN(6))
			case 4:
				p.Snap = SnapMode(rng.IntN(3))
			case 5:
				p.Clear = !p.Clear
			}
		}
		ch[0] = float32(rng.Float64()*2 - 1)
		l.Process(&Block{Samples: [][]float32{ch}, Begin: p, End: p, Transport: tr})
		tr.PositionInSamples++
		tr.PositionInQuarterNotes = SamplesToQuarterNotes(float64(tr.PositionInSamples), tr.BPM, testRate)
		tr.CurrentMeasureDownbeat = math.Floor(tr.PositionInQuarterNotes/measure) * measure

		pg, rg := l.Gains()
		if pg < 0 || pg > 1 || rg < 0 || rg > 1 {
			t.Fatalf("sample %d: gains out of range play=%v rec=%v", i, pg, rg)
		}
		if l.RecordIndex() > l.Capacity() {
			t.Fatalf("sample %d: record index %d beyond capacity %d", i, l.RecordIndex(), l.Capacity())
		}
		if l.LoopLength() > 0 && l.PlayIndex() >= l.LoopLength() {
			t.Fatalf("sample %d: play index %d outside loop of %d", i, l.PlayIndex(), l.LoopLength())
		}
	}
}
