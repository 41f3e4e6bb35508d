package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// Clip is decoded audio with one slice per channel.
type Clip struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel.
func (c *Clip) Frames() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// EncodeWAVFloat32LE writes interleaved samples as a 32-bit float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], wavFormatFloat)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// EncodeClip writes a clip as a 32-bit float WAV file.
func EncodeClip(c *Clip) []byte {
	return EncodeWAVFloat32LE(Interleave(c.Channels), c.SampleRate, len(c.Channels))
}

// DecodeWAV reads 16-bit, 24-bit or 32-bit PCM and 32-bit float WAV data.
// Chunks other than fmt and data are skipped.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV data: %w", err)
	}
	channels, rate := int(d.NumChans), int(d.SampleRate)
	if channels <= 0 || rate <= 0 {
		return nil, fmt.Errorf("invalid format: %d channels at %d Hz", channels, rate)
	}
	if len(buf.Data) == 0 {
		return nil, errors.New("no audio data")
	}
	var read func(int) float32
	switch {
	case d.WavAudioFormat == wavFormatFloat && d.BitDepth == 32:
		read = func(v int) float32 { return math.Float32frombits(uint32(v)) }
	case d.WavAudioFormat == wavFormatFloat:
		return nil, fmt.Errorf("unsupported float sample width %d", d.BitDepth)
	case d.BitDepth == 16:
		read = func(v int) float32 { return float32(int16(v)) / 32768 }
	case d.BitDepth == 24:
		read = func(v int) float32 { return float32(int32(uint32(v)<<8)>>8) / 8388608 }
	case d.BitDepth == 32:
		read = func(v int) float32 { return float32(int32(uint32(v))) / 2147483648 }
	default:
		return nil, fmt.Errorf("unsupported sample format %d with %d bits", d.WavAudioFormat, d.BitDepth)
	}
	samples := make([]float32, len(buf.Data)-len(buf.Data)%channels)
	for i := range samples {
		samples[i] = read(buf.Data[i])
	}
	return &Clip{SampleRate: rate, Channels: Deinterleave(samples, channels)}, nil
}

// EncodePCM writes a clip as integer PCM at 16 or 24 bits. Samples are
// clipped to [-1, 1].
func EncodePCM(w io.WriteSeeker, c *Clip, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported PCM bit depth %d", bitDepth)
	}
	if len(c.Channels) == 0 {
		return errors.New("clip has no channels")
	}
	scale := float64(int(1)<<(bitDepth-1) - 1)
	flat := Interleave(c.Channels)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: len(c.Channels),
			SampleRate:  c.SampleRate,
		},
		Data:           make([]int, len(flat)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range flat {
		buf.Data[i] = int(math.Round(max(-1, min(1, float64(s))) * scale))
	}
	enc := wav.NewEncoder(w, c.SampleRate, bitDepth, len(c.Channels), wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// Interleave packs per-channel slices into one frame-ordered slice.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float32, n*len(channels))
	for c, ch := range channels {
		for i := 0; i < n && i < len(ch); i++ {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}

// Deinterleave splits frame-ordered samples into per-channel slices.
func Deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
		for i := range out[c] {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}
