package storage

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestCaptureSlotsFollowOperatorOrder(t *testing.T) {
	a := NewAllocator()
	want := []string{
		"i1", "j1", "i2", "j2", "i3", "j3", "i4", "j4",
		"i5", "j5", "i6", "j6", "i7", "j7", "i8", "j8",
	}
	seen := map[string]bool{}
	for i, w := range want {
		sq, err := a.NextCaptureSlot(nchess.White)
		if err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
		if sq.String() != w {
			t.Fatalf("slot %d = %s, want %s", i, sq, w)
		}
		if seen[w] {
			t.Fatalf("slot %s handed out twice", w)
		}
		seen[w] = true
	}
	if _, err := a.NextCaptureSlot(nchess.White); !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("17th slot: expected ErrStorageExhausted, got %v", err)
	}
	// 다른 색 저장소는 영향 없음
	sq, err := a.NextCaptureSlot(nchess.Black)
	if err != nil || sq.String() != "l1" {
		t.Fatalf("black first slot = %v, %v", sq, err)
	}
	sq, err = a.NextCaptureSlot(nchess.Black)
	if err != nil || sq.String() != "m1" {
		t.Fatalf("black second slot = %v, %v", sq, err)
	}
}

func TestQueenSourceHasEightSlots(t *testing.T) {
	a := NewAllocator()
	for row := 1; row <= 8; row++ {
		sq, err := a.NextQueenSourceSlot(nchess.Black)
		if err != nil {
			t.Fatalf("queen %d: %v", row, err)
		}
		if sq.Col != 'n' || sq.Row != row {
			t.Fatalf("queen %d = %s", row, sq)
		}
	}
	if _, err := a.NextQueenSourceSlot(nchess.Black); !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("9th queen: expected ErrStorageExhausted, got %v", err)
	}
	sq, err := a.NextQueenSourceSlot(nchess.White)
	if err != nil || sq.String() != "k1" {
		t.Fatalf("white queen = %v, %v", sq, err)
	}
}

func TestUnknownColorIsRejected(t *testing.T) {
	a := NewAllocator()
	if _, err := a.NextCaptureSlot(nchess.NoColor); !errors.Is(err, ErrUnknownColor) {
		t.Fatalf("expected ErrUnknownColor, got %v", err)
	}
	if _, err := a.NextQueenSourceSlot(nchess.NoColor); !errors.Is(err, ErrUnknownColor) {
		t.Fatalf("expected ErrUnknownColor, got %v", err)
	}
}

func TestRemainingAndRestore(t *testing.T) {
	a := NewAllocator()
	for i := 0; i < 3; i++ {
		if _, err := a.NextCaptureSlot(nchess.White); err != nil {
			t.Fatalf("alloc: %v", err)
		}
	}
	if _, err := a.NextQueenSourceSlot(nchess.White); err != nil {
		t.Fatalf("alloc queen: %v", err)
	}
	capture, queens := a.Remaining(nchess.White)
	if capture != 13 || queens != 7 {
		t.Fatalf("remaining = %d/%d", capture, queens)
	}

	b := NewAllocator()
	if err := b.Restore(a.Snapshot()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	sq, err := b.NextCaptureSlot(nchess.White)
	if err != nil || sq.String() != "j2" {
		t.Fatalf("after restore next slot = %v, %v", sq, err)
	}
	if err := b.Restore(Grid{}); !errors.Is(err, ErrRestoreShrinks) {
		t.Fatalf("expected ErrRestoreShrinks, got %v", err)
	}
}

func TestCloneLeavesOriginalUntilCommitted(t *testing.T) {
	a := NewAllocator()
	if _, err := a.NextCaptureSlot(nchess.Black); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	draft := a.Clone()
	sq, err := draft.NextCaptureSlot(nchess.Black)
	if err != nil || sq.String() != "m1" {
		t.Fatalf("draft slot = %v, %v", sq, err)
	}
	if capture, _ := a.Remaining(nchess.Black); capture != 15 {
		t.Fatalf("original remaining = %d, want 15", capture)
	}
	// 버린 사본은 원본 순서에 영향 없음
	if again, err := a.Clone().NextCaptureSlot(nchess.Black); err != nil || again.String() != "m1" {
		t.Fatalf("second draft slot = %v, %v", again, err)
	}
	if err := a.Restore(draft.Snapshot()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if capture, _ := a.Remaining(nchess.Black); capture != 14 {
		t.Fatalf("committed remaining = %d, want 14", capture)
	}
}
