// Package storage assigns the side-storage slots that captured pieces are
// dropped into and that promotion queens are picked from.
package storage

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
)

var (
	ErrStorageExhausted = errors.New("robot storage exhausted")
	ErrRestoreShrinks   = errors.New("storage snapshot frees an occupied slot")
	ErrUnknownColor     = errors.New("storage color must be white or black")
)

const (
	Rows         = workspace.MaxRow
	BinColumns   = 2
	CaptureSlots = Rows * BinColumns
	QueenSlots   = Rows
)

// Grid is the occupancy of one session's storage. true means Occupied.
// Index [row-1][column].
type Grid struct {
	WhiteCapture [Rows][BinColumns]bool `json:"white_capture"`
	BlackCapture [Rows][BinColumns]bool `json:"black_capture"`
	WhiteQueens  [Rows]bool             `json:"white_queens"`
	BlackQueens  [Rows]bool             `json:"black_queens"`
}

// Allocator hands out slots in the order the operator pre-fills them.
// Not safe for concurrent use; one allocator belongs to one session.
type Allocator struct {
	grid Grid
}

func NewAllocator() *Allocator { return &Allocator{} }

// NextCaptureSlot scans rows bottom-up, columns inner, and occupies the first free bin.
func (a *Allocator) NextCaptureSlot(color nchess.Color) (workspace.Square, error) {
	bins, cols, err := a.captureBins(color)
	if err != nil {
		return workspace.Square{}, err
	}
	for r := 0; r < Rows; r++ {
		for c := 0; c < BinColumns; c++ {
			if bins[r][c] {
				continue
			}
			bins[r][c] = true
			return workspace.Sq(cols[c], r+1), nil
		}
	}
	return workspace.Square{}, fmt.Errorf("%w: %s capture bins full (%d)", ErrStorageExhausted, colorName(color), CaptureSlots)
}

// NextQueenSourceSlot occupies the next pre-staged queen of the given color.
func (a *Allocator) NextQueenSourceSlot(color nchess.Color) (workspace.Square, error) {
	slots, col, err := a.queenSlots(color)
	if err != nil {
		return workspace.Square{}, err
	}
	for r := 0; r < Rows; r++ {
		if slots[r] {
			continue
		}
		slots[r] = true
		return workspace.Sq(col, r+1), nil
	}
	return workspace.Square{}, fmt.Errorf("%w: %s queen source empty (%d)", ErrStorageExhausted, colorName(color), QueenSlots)
}

// Remaining reports free capture bins and queen slots for a color.
func (a *Allocator) Remaining(color nchess.Color) (capture int, queens int) {
	bins, _, err := a.captureBins(color)
	if err != nil {
		return 0, 0
	}
	slots, _, _ := a.queenSlots(color)
	for r := 0; r < Rows; r++ {
		for c := 0; c < BinColumns; c++ {
			if !bins[r][c] {
				capture++
			}
		}
		if !slots[r] {
			queens++
		}
	}
	return capture, queens
}

func (a *Allocator) Snapshot() Grid { return a.grid }

// Clone returns an independent copy; slots taken on it do not touch a.
func (a *Allocator) Clone() *Allocator { return &Allocator{grid: a.grid} }

// Restore loads a persisted grid. Slots already occupied must stay occupied.
func (a *Allocator) Restore(g Grid) error {
	for r := 0; r < Rows; r++ {
		for c := 0; c < BinColumns; c++ {
			if (a.grid.WhiteCapture[r][c] && !g.WhiteCapture[r][c]) || (a.grid.BlackCapture[r][c] && !g.BlackCapture[r][c]) {
				return fmt.Errorf("%w: capture row %d", ErrRestoreShrinks, r+1)
			}
		}
		if (a.grid.WhiteQueens[r] && !g.WhiteQueens[r]) || (a.grid.BlackQueens[r] && !g.BlackQueens[r]) {
			return fmt.Errorf("%w: queen row %d", ErrRestoreShrinks, r+1)
		}
	}
	a.grid = g
	return nil
}

func (a *Allocator) captureBins(color nchess.Color) (*[Rows][BinColumns]bool, [BinColumns]workspace.Column, error) {
	switch color {
	case nchess.White:
		return &a.grid.WhiteCapture, [BinColumns]workspace.Column{workspace.ColI, workspace.ColJ}, nil
	case nchess.Black:
		return &a.grid.BlackCapture, [BinColumns]workspace.Column{workspace.ColL, workspace.ColM}, nil
	}
	return nil, [BinColumns]workspace.Column{}, ErrUnknownColor
}

func (a *Allocator) queenSlots(color nchess.Color) (*[Rows]bool, workspace.Column, error) {
	switch color {
	case nchess.White:
		return &a.grid.WhiteQueens, workspace.ColK, nil
	case nchess.Black:
		return &a.grid.BlackQueens, workspace.ColN, nil
	}
	return nil, 0, ErrUnknownColor
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	}
	return "unknown"
}
