package choreo

import (
	"errors"
	"fmt"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
)

var (
	ErrUnsupportedPromotion  = errors.New("only queen promotions can be staged")
	ErrInvalidClassification = errors.New("invalid move classification")
)

// SlotAllocator is satisfied by *storage.Allocator.
type SlotAllocator interface {
	NextCaptureSlot(color nchess.Color) (workspace.Square, error)
	NextQueenSourceSlot(color nchess.Color) (workspace.Square, error)
}

// Classification is what the rules engine says about one move.
type Classification struct {
	Kind Kind
	From workspace.Square
	To   workspace.Square
	// Captured is where the captured piece stands. It differs from To only for en passant.
	Captured      workspace.Square
	Moving        nchess.Color
	CapturedColor nchess.Color
	Promo         nchess.PieceType
	EnPassant     bool
	UCI           string
}

// Choreography is the ordered list of waypoints for one move.
type Choreography struct {
	Kind    Kind
	Squares []workspace.Square
}

func (c Choreography) Strings() []string {
	out := make([]string, len(c.Squares))
	for i, sq := range c.Squares {
		out[i] = sq.String()
	}
	return out
}

type Choreographer struct {
	alloc SlotAllocator
}

func NewChoreographer(alloc SlotAllocator) *Choreographer {
	return &Choreographer{alloc: alloc}
}

// Encode consumes storage slots as a side effect. Slots taken before a
// failing step stay occupied; a failure is fatal to the session anyway.
func (c *Choreographer) Encode(cl Classification) (Choreography, error) {
	if err := cl.validate(); err != nil {
		return Choreography{}, err
	}
	switch cl.Kind {
	case KindMove:
		return Choreography{Kind: cl.Kind, Squares: []workspace.Square{cl.From, cl.To}}, nil

	case KindCapture:
		bin, err := c.alloc.NextCaptureSlot(cl.CapturedColor)
		if err != nil {
			return Choreography{}, fmt.Errorf("capture %s: %w", cl.Captured, err)
		}
		return Choreography{Kind: cl.Kind, Squares: []workspace.Square{cl.capturedSquare(), bin, cl.From, cl.To}}, nil

	case KindPromotion:
		retire, queen, err := c.promotionSlots(cl.Moving)
		if err != nil {
			return Choreography{}, err
		}
		return Choreography{Kind: cl.Kind, Squares: []workspace.Square{cl.From, retire, queen, cl.To}}, nil

	case KindCapturePromotion:
		bin, err := c.alloc.NextCaptureSlot(cl.CapturedColor)
		if err != nil {
			return Choreography{}, fmt.Errorf("capture %s: %w", cl.To, err)
		}
		retire, queen, err := c.promotionSlots(cl.Moving)
		if err != nil {
			return Choreography{}, err
		}
		return Choreography{Kind: cl.Kind, Squares: []workspace.Square{cl.To, bin, cl.From, retire, queen, cl.To}}, nil
	}
	return Choreography{}, fmt.Errorf("%w: kind %s", ErrInvalidClassification, cl.Kind)
}

func (c *Choreographer) promotionSlots(color nchess.Color) (workspace.Square, workspace.Square, error) {
	retire, err := c.alloc.NextCaptureSlot(color)
	if err != nil {
		return workspace.Square{}, workspace.Square{}, fmt.Errorf("retire pawn: %w", err)
	}
	queen, err := c.alloc.NextQueenSourceSlot(color)
	if err != nil {
		return workspace.Square{}, workspace.Square{}, fmt.Errorf("stage queen: %w", err)
	}
	return retire, queen, nil
}

func (cl Classification) capturedSquare() workspace.Square {
	if cl.Captured.IsZero() {
		return cl.To
	}
	return cl.Captured
}

func (cl Classification) validate() error {
	if !cl.Kind.Valid() {
		return fmt.Errorf("%w: kind %s", ErrInvalidClassification, cl.Kind)
	}
	if cl.From.IsZero() || cl.To.IsZero() {
		return fmt.Errorf("%w: missing from/to", ErrInvalidClassification)
	}
	if cl.Kind == KindPromotion || cl.Kind == KindCapturePromotion {
		if cl.Promo != nchess.Queen && cl.Promo != nchess.NoPieceType {
			return fmt.Errorf("%w: %s", ErrUnsupportedPromotion, cl.Promo)
		}
	}
	return nil
}
