package marker

import (
	"strings"
	"testing"
)

const testMarker = "[CONTINUE_LISTENING]"

// run pushes fragments through a fresh buffer and returns the
// concatenated emissions (including the final flush) and the found flag.
func run(fragments []string) (string, bool) {
	b := New(testMarker)
	var out strings.Builder
	for _, f := range fragments {
		out.WriteString(b.Push(f))
	}
	out.WriteString(b.Flush())
	return out.String(), b.Found()
}

func TestPush_MarkerSplitAcrossFragments(t *testing.T) {
	got, found := run([]string{"Hello ", "[", "CONT", "INUE_LIST", "ENING]", " bye"})
	if got != "Hello  bye" {
		t.Errorf("output = %q, want %q", got, "Hello  bye")
	}
	if !found {
		t.Error("expected marker found")
	}
}

func TestPush_NoMarker(t *testing.T) {
	got, found := run([]string{"Just ", "a normal ", "response."})
	if got != "Just a normal response." {
		t.Errorf("output = %q", got)
	}
	if found {
		t.Error("expected no marker")
	}
}

func TestPush_MarkerInSingleFragment(t *testing.T) {
	got, found := run([]string{"Pick a color " + testMarker})
	if got != "Pick a color " {
		t.Errorf("output = %q", got)
	}
	if !found {
		t.Error("expected marker found")
	}
}

func TestPush_MultipleMarkersRemoved(t *testing.T) {
	got, found := run([]string{"a" + testMarker + "b" + testMarker + "c"})
	if got != "abc" {
		t.Errorf("output = %q, want abc", got)
	}
	if !found {
		t.Error("expected marker found")
	}
}

func TestPush_SecondMarkerFormingAfterComplete(t *testing.T) {
	b := New(testMarker)
	var out strings.Builder
	// The fragment ends with the opening of a possible second marker,
	// which the next fragment completes.
	out.WriteString(b.Push("ok " + testMarker + " [CONT"))
	out.WriteString(b.Push("INUE_LISTENING] done"))
	out.WriteString(b.Flush())
	if got := out.String(); got != "ok   done" {
		t.Errorf("output = %q, want %q", got, "ok   done")
	}
	if !b.Found() {
		t.Error("expected marker found")
	}
}

func TestPush_FalseAlarmPrefixEmittedOnResolve(t *testing.T) {
	// "[CONT" looks like a forming marker until "ext]" proves otherwise.
	got, found := run([]string{"see ", "[CONT", "ext] here"})
	if got != "see [CONText] here" {
		t.Errorf("output = %q", got)
	}
	if found {
		t.Error("expected no marker")
	}
}

func TestFlush_DanglingPartialPrefixEmittedVerbatim(t *testing.T) {
	b := New(testMarker)
	var out strings.Builder
	out.WriteString(b.Push("wait "))
	out.WriteString(b.Push("[CONTINUE"))
	// Stream ends mid-marker: the held text was never a marker.
	out.WriteString(b.Flush())
	if got := out.String(); got != "wait [CONTINUE" {
		t.Errorf("output = %q", got)
	}
	if b.Found() {
		t.Error("expected no marker")
	}
}

func TestFlush_AfterMarkerStillEmitsHeldText(t *testing.T) {
	b := New(testMarker)
	var out strings.Builder
	out.WriteString(b.Push("done " + testMarker + " tail ["))
	out.WriteString(b.Flush())
	if got := out.String(); got != "done  tail [" {
		t.Errorf("output = %q", got)
	}
	if !b.Found() {
		t.Error("expected marker found")
	}
}

func TestPush_HoldsWhileTailIsPrefix(t *testing.T) {
	b := New(testMarker)
	if got := b.Push("Hello "); got != "Hello " {
		t.Errorf("first push = %q", got)
	}
	if got := b.Push("["); got != "" {
		t.Errorf("partial prefix should be withheld, got %q", got)
	}
	if got := b.Push("CONT"); got != "" {
		t.Errorf("still partial, got %q", got)
	}
}

func TestFound_StickyAcrossPushes(t *testing.T) {
	b := New(testMarker)
	b.Push(testMarker)
	b.Push("more text")
	if !b.Found() {
		t.Error("Found should stay true after later pushes")
	}
}

func TestPush_EmptyFragment(t *testing.T) {
	b := New(testMarker)
	if got := b.Push(""); got != "" {
		t.Errorf("empty push = %q", got)
	}
}
