//go:build windows
// +build windows

package subprocess

import "testing"

func TestEscapeArgWindowsPassesPlainArgsThrough(t *testing.T) {
	if got := escapeArgWindows("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

func TestEscapeArgWindowsQuotesSpacesAndEmbeddedQuotes(t *testing.T) {
	got := escapeArgWindows(`say "hi"`)
	want := `"say \"hi\""`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEscapeArgWindowsDoublesTrailingBackslashesBeforeClosingQuote(t *testing.T) {
	got := escapeArgWindows(`C:\dir with space\`)
	want := `"C:\dir with space\\"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNeutralizeForBatchEscapesPercentAndNewlines(t *testing.T) {
	got := neutralizeForBatch("100%\ndone")
	want := "100%% done"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
