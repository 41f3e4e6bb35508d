package looper

import "testing"

func TestParseModes(t *testing.T) {
	recordCases := map[string]RecordMode{
		"loop":      RecordLoopOver,
		"Repeat":    RecordExtend,
		"extend":    RecordExtend,
		"append":    RecordAppend,
		"overwrite": RecordOverwrite,
		" punch ":   RecordPunch,
		"clear":     RecordClear,
	}
	for in, want := range recordCases {
		got, err := ParseRecordMode(in)
		if err != nil || got != want {
			t.Errorf("ParseRecordMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRecordMode("shuffle"); err == nil {
		t.Error("expected error for unknown record mode")
	}

	snapCases := map[string]SnapMode{"none": SnapNone, "measure": SnapMeasure, "beat": SnapQuarter, "quarter": SnapQuarter}
	for in, want := range snapCases {
		got, err := ParseSnapMode(in)
		if err != nil || got != want {
			t.Errorf("ParseSnapMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSnapMode("eighth"); err == nil {
		t.Error("expected error for unknown snap mode")
	}

	if got, err := ParseTriggerMode("detect"); err != nil || got != TriggerDetect {
		t.Errorf("ParseTriggerMode(detect) = %v, %v", got, err)
	}
}

func TestModeStringsRoundTrip(t *testing.T) {
	for m := RecordLoopOver; m <= RecordClear; m++ {
		got, err := ParseRecordMode(m.String())
		if err != nil || got != m {
			t.Errorf("round trip of %v = %v, %v", m, got, err)
		}
	}
	for m := SnapNone; m <= SnapQuarter; m++ {
		got, err := ParseSnapMode(m.String())
		if err != nil || got != m {
			t.Errorf("round trip of %v = %v, %v", m, got, err)
		}
	}
	if s := RecordMode(42).String(); s != "RecordMode(42)" {
		t.Errorf("out of range string = %q", s)
	}
}
