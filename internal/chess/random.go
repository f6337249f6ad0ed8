package chess

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// RandomSelector plays a uniformly random legal move. Used when no engine binary is configured.
type RandomSelector struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSelector{rand: rand.New(rand.NewSource(seed))}
}

func (r *RandomSelector) NewGame(context.Context) error { return nil }

func (r *RandomSelector) Close() error { return nil }

func (r *RandomSelector) SelectMove(ctx context.Context, req MoveRequest) (MoveChoice, error) {
	if err := ctx.Err(); err != nil {
		return MoveChoice{}, err
	}
	start := time.Now()
	game := nchess.NewGame()
	for _, mv := range req.Moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return MoveChoice{}, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	moves := game.ValidMoves()
	if len(moves) == 0 {
		return MoveChoice{}, ErrNoLegalMove
	}
	r.mu.Lock()
	idx := r.rand.Intn(len(moves))
	r.mu.Unlock()
	picked := moves[idx].String()
	return MoveChoice{
		Move:     picked,
		BestMove: picked,
		Preset:   req.PresetName,
		Source:   "random",
		Duration: time.Since(start),
	}, nil
}
