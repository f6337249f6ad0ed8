package relay

import (
	"strings"
	"testing"
)

func TestFoldShortTextUntouched(t *testing.T) {
	in := "one\ntwo"
	if got := Fold(in, 3); got != in {
		t.Fatalf("got %q", got)
	}
	if got := Fold("a\nb\nc\nd", 0); got != "a\nb\nc\nd" {
		t.Fatalf("disabled fold changed text: %q", got)
	}
}

func TestFoldLongTextHidesBody(t *testing.T) {
	got := Fold("header\nl1\nl2\nl3", 2)
	if !strings.HasPrefix(got, "header"+zeroWidthSpace) {
		t.Fatalf("header not kept in front: %q", got[:20])
	}
	if strings.Count(got, zeroWidthSpace) != SeeMorePadding {
		t.Fatalf("padding = %d", strings.Count(got, zeroWidthSpace))
	}
	if !strings.HasSuffix(got, "\nl1\nl2\nl3") {
		t.Fatalf("body lost: %q", got[len(got)-12:])
	}
}

func TestSeeMoreBlankBody(t *testing.T) {
	if got := SeeMore("  ", "h"); got != "  " {
		t.Fatalf("got %q", got)
	}
}
