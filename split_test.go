package irc

import "testing"

func TestSplit_withinBudget(t *testing.T) {
	got := Split("hello world", 100)
	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("Split() = %v; want a single unsplit chunk", got)
	}
}

func TestSplit_breaksOnSpace(t *testing.T) {
	got := Split("hello there world", 8)
	want := []string{"hello", "there", "world"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Split()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_hardCutWithNoSpace(t *testing.T) {
	got := Split("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Split()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_graphemeClusterNotBroken(t *testing.T) {
	// "e" followed by a combining acute accent forms a single extended
	// grapheme cluster (3 bytes) that must never be split.
	cluster := "é"
	text := cluster + cluster
	got := Split(text, len(cluster)) // budget equal to exactly one cluster
	if len(got) != 2 {
		t.Fatalf("Split() = %v; want 2 chunks, one per cluster", got)
	}
	if got[0] != cluster || got[1] != cluster {
		t.Errorf("Split() = %v; want each chunk to be a whole grapheme cluster", got)
	}
}

func TestSplit_empty(t *testing.T) {
	if got := Split("", 10); got != nil {
		t.Errorf("Split(\"\", 10) = %v; want nil", got)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("one\r\ntwo\nthree\rfour")
	want := []string{"one", "two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("SplitLines() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitLines()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestSplitBudget(t *testing.T) {
	b := splitBudget(0, "nick", "nick!user@host.example.com", "#chan")
	want := 497 - len("nick") - len("nick!user@host.example.com") - len("#chan")
	if b != want {
		t.Errorf("splitBudget() = %d; want %d", b, want)
	}
}

func TestSplitBudget_capsToMessageSplit(t *testing.T) {
	b := splitBudget(50, "nick", "nick!user@host", "#chan")
	if b != 50 {
		t.Errorf("splitBudget() = %d; want 50 (the smaller, configured cap)", b)
	}
}

func TestSplitBudget_neverBelowOne(t *testing.T) {
	longHost := make([]byte, 600)
	for i := range longHost {
		longHost[i] = 'a'
	}
	b := splitBudget(0, "nick", string(longHost), "#chan")
	if b != 1 {
		t.Errorf("splitBudget() = %d; want 1 (floor)", b)
	}
}
