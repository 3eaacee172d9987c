package warnings

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestAddfLogsUnlessQuiet(t *testing.T) {
	buf := captureLog(t)

	l := &List{}
	l.Addf("audio", "track %s missing", "rain.mp3")
	if !strings.Contains(buf.String(), "[!] audio: track rain.mp3 missing") {
		t.Errorf("unexpected log %q", buf.String())
	}

	buf.Reset()
	q := Quiet()
	q.Addf("audio", "silent")
	if buf.Len() != 0 {
		t.Errorf("quiet list logged %q", buf.String())
	}
	if q.Len() != 1 || !q.Has("audio") {
		t.Errorf("quiet list lost the warning: %v", q.Items())
	}
}

func TestMergeDoesNotLog(t *testing.T) {
	buf := captureLog(t)

	l := &List{}
	l.Addf("clips", "first")
	buf.Reset()

	l.Merge(Warning{Stage: "encode", Message: "tier high failed"}, Warning{Stage: "audio", Message: "no ambient"})
	if buf.Len() != 0 {
		t.Errorf("Merge logged %q", buf.String())
	}
	items := l.Items()
	if len(items) != 3 || items[1].Stage != "encode" || items[2].String() != "audio: no ambient" {
		t.Errorf("unexpected items %v", items)
	}
}

func TestNilListDiscards(t *testing.T) {
	captureLog(t)

	var l *List
	l.Addf("x", "dropped")
	l.Merge(Warning{Stage: "x"})
	if l.Len() != 0 || l.Items() != nil || l.Has("x") {
		t.Error("nil list should hold nothing")
	}
}
