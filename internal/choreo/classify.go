package choreo

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
)

var ErrEmptyMove = errors.New("move is required")

// EnPassantPolicy decides how an en passant capture is choreographed.
type EnPassantPolicy int

const (
	// EnPassantRelocate clears the passed pawn into a capture bin.
	EnPassantRelocate EnPassantPolicy = iota
	// EnPassantIgnore encodes en passant as a quiet move; the operator removes the pawn by hand.
	EnPassantIgnore
)

func ParseEnPassantPolicy(s string) (EnPassantPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relocate":
		return EnPassantRelocate, nil
	case "ignore":
		return EnPassantIgnore, nil
	}
	return EnPassantRelocate, fmt.Errorf("unknown en passant policy %q", s)
}

func (p EnPassantPolicy) String() string {
	if p == EnPassantIgnore {
		return "ignore"
	}
	return "relocate"
}

// Classify reads capture, promotion and en passant facts for mv played from pos.
func Classify(pos *nchess.Position, mv *nchess.Move, policy EnPassantPolicy) (Classification, error) {
	if pos == nil || mv == nil {
		return Classification{}, ErrEmptyMove
	}
	board := pos.Board()
	mover := board.Piece(mv.S1())
	if mover == nchess.NoPiece {
		return Classification{}, fmt.Errorf("%w: no piece on %s", ErrInvalidClassification, mv.S1())
	}

	cl := Classification{
		From:   FromBoardSquare(mv.S1()),
		To:     FromBoardSquare(mv.S2()),
		Moving: mover.Color(),
		Promo:  mv.Promo(),
		UCI:    mv.String(),
	}

	captured := false
	captureSquare := mv.S2()
	switch {
	case mv.HasTag(nchess.EnPassant):
		cl.EnPassant = true
		if policy == EnPassantRelocate {
			captured = true
			file := mv.S2().File()
			rank := mv.S2().Rank()
			if mover.Color() == nchess.White {
				captureSquare = nchess.NewSquare(file, rank-1)
			} else {
				captureSquare = nchess.NewSquare(file, rank+1)
			}
		}
	case mv.HasTag(nchess.Capture):
		captured = true
	}

	if captured {
		victim := board.Piece(captureSquare)
		if victim == nchess.NoPiece {
			return Classification{}, fmt.Errorf("%w: capture on empty %s", ErrInvalidClassification, captureSquare)
		}
		cl.CapturedColor = victim.Color()
		cl.Captured = FromBoardSquare(captureSquare)
	}

	promo := cl.Promo != nchess.NoPieceType
	switch {
	case captured && promo:
		cl.Kind = KindCapturePromotion
	case promo:
		cl.Kind = KindPromotion
	case captured:
		cl.Kind = KindCapture
	default:
		cl.Kind = KindMove
	}
	return cl, nil
}

// FromBoardSquare converts a rules-engine square into a main-board workspace square.
func FromBoardSquare(sq nchess.Square) workspace.Square {
	return workspace.Sq(workspace.ColA+workspace.Column(sq.File()), int(sq.Rank())+1)
}
