package looper

import (
	"fmt"
	"strings"
)

// RecordMode selects how a new take interacts with the existing loop.
type RecordMode int

const (
	// RecordLoopOver overdubs and keeps the loop length; the write head wraps at the loop end.
	RecordLoopOver RecordMode = iota
	// RecordExtend overdubs and keeps writing past the loop end, growing the loop on stop.
	RecordExtend
	// RecordAppend overdubs until the loop end, then records without replaying old material.
	RecordAppend
	// RecordOverwrite truncates the loop at the record position and replaces what follows.
	RecordOverwrite
	// RecordPunch mutes playback while recording and keeps the loop length.
	RecordPunch
	// RecordClear erases the loop when recording starts.
	RecordClear
)

var recordModeNames = [...]string{"loop", "extend", "append", "overwrite", "punch", "clear"}

func (m RecordMode) String() string {
	if m < 0 || int(m) >= len(recordModeNames) {
		return fmt.Sprintf("RecordMode(%d)", int(m))
	}
	return recordModeNames[m]
}

// wraps reports whether the write head wraps to 0 at the loop end.
func (m RecordMode) wraps() bool {
	switch m {
	case RecordLoopOver, RecordPunch:
		return true
	case RecordExtend, RecordAppend, RecordOverwrite, RecordClear:
		return false
	}
	return false
}

// replacesPastEnd reports whether material recorded past the loop end must not be
// blended with playback.
func (m RecordMode) replacesPastEnd() bool {
	switch m {
	case RecordOverwrite, RecordAppend:
		return true
	case RecordLoopOver, RecordExtend, RecordPunch, RecordClear:
		return false
	}
	return false
}

// ParseRecordMode accepts the mode names and the host labels ("repeat" for extend).
func ParseRecordMode(s string) (RecordMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loop", "loopover", "loop-over":
		return RecordLoopOver, nil
	case "extend", "repeat":
		return RecordExtend, nil
	case "append":
		return RecordAppend, nil
	case "overwrite":
		return RecordOverwrite, nil
	case "punch":
		return RecordPunch, nil
	case "clear":
		return RecordClear, nil
	default:
		return 0, fmt.Errorf("invalid record mode %q (expected loop|extend|append|overwrite|punch|clear)", s)
	}
}

// SnapMode selects the musical boundary transitions wait for.
type SnapMode int

const (
	SnapNone SnapMode = iota
	SnapMeasure
	SnapQuarter
)

var snapModeNames = [...]string{"none", "measure", "quarter"}

func (m SnapMode) String() string {
	if m < 0 || int(m) >= len(snapModeNames) {
		return fmt.Sprintf("SnapMode(%d)", int(m))
	}
	return snapModeNames[m]
}

func ParseSnapMode(s string) (SnapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off", "":
		return SnapNone, nil
	case "measure", "bar":
		return SnapMeasure, nil
	case "quarter", "beat":
		return SnapQuarter, nil
	default:
		return 0, fmt.Errorf("invalid snap mode %q (expected none|measure|quarter)", s)
	}
}

// TriggerMode selects how an armed first take begins.
type TriggerMode int

const (
	TriggerManual TriggerMode = iota
	// TriggerDetect waits for the input to exceed the trigger threshold.
	TriggerDetect
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerManual:
		return "manual"
	case TriggerDetect:
		return "detect"
	}
	return fmt.Sprintf("TriggerMode(%d)", int(m))
}

func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "":
		return TriggerManual, nil
	case "detect", "auto":
		return TriggerDetect, nil
	default:
		return 0, fmt.Errorf("invalid trigger mode %q (expected manual|detect)", s)
	}
}
