package chess

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-robot-bridge/internal/chess/uci"
)

// BuildGoCommand returns the "go ..." tokens for one robot search at preset p.
func BuildGoCommand(p DifficultyPreset) ([]string, error) {
	if err := ValidatePreset(p); err != nil {
		return nil, err
	}
	args, err := limitsFromPreset(p).GoArgs()
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return args, nil
}

func FormatGoCommand(p DifficultyPreset) (string, error) {
	args, err := BuildGoCommand(p)
	return strings.Join(args, " "), err
}

func optionsFromPreset(p DifficultyPreset) uci.Options {
	return uci.Options{
		Threads:       p.Threads,
		SkillLevel:    p.SkillLevel,
		HashMB:        p.HashMB,
		MultiPV:       p.MultiPV,
		Elo:           p.Elo,
		LimitStrength: p.Elo > 0,
	}
}

func limitsFromPreset(p DifficultyPreset) uci.Limits {
	return uci.Limits{Depth: p.DepthCap, MoveTimeMillis: p.MoveTimeMillis, NodeCap: p.NodeCap}
}
