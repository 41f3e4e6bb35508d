package audio

// ClipSource plays a clip block by block as looper input, optionally
// repeating it. Channels the clip lacks are filled from its last channel.
type ClipSource struct {
	clip *Clip
	pos  int
	loop bool
}

func NewClipSource(c *Clip, loop bool) *ClipSource {
	return &ClipSource{clip: c, loop: loop}
}

// Fill copies the next len(dst[0]) frames into dst, padding with silence once
// a non-looping clip runs out.
func (s *ClipSource) Fill(dst [][]float32) {
	if len(dst) == 0 {
		return
	}
	frames := s.clip.Frames()
	n := len(dst[0])
	for i := 0; i < n; i++ {
		if s.pos >= frames {
			if !s.loop || frames == 0 {
				for c := range dst {
					clear(dst[c][i:])
				}
				return
			}
			s.pos = 0
		}
		for c := range dst {
			src := s.clip.Channels[min(c, len(s.clip.Channels)-1)]
			dst[c][i] = src[s.pos]
		}
		s.pos++
	}
}

// Done reports whether a non-looping clip has been fully consumed.
func (s *ClipSource) Done() bool {
	return !s.loop && s.pos >= s.clip.Frames()
}
