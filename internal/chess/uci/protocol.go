package uci

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

const mateScore = 30000

var ErrNoBestMove = errors.New("engine returned no move")

// Options are applied once per process with setoption.
type Options struct {
	Threads       int
	SkillLevel    int
	HashMB        int
	MultiPV       int
	Elo           int
	LimitStrength bool
}

func (o Options) validate() error {
	switch {
	case o.SkillLevel < 0 || o.SkillLevel > 20:
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	case o.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", o.HashMB)
	case o.MultiPV <= 0:
		return fmt.Errorf("multipv must be > 0: %d", o.MultiPV)
	case o.Elo < 0:
		return fmt.Errorf("elo must be >= 0: %d", o.Elo)
	}
	return nil
}

func (o Options) commands() []string {
	set := func(name string, v any) string { return fmt.Sprintf("setoption name %s value %v", name, v) }
	out := []string{
		set("Threads", max(o.Threads, 1)),
		set("Hash", o.HashMB),
		set("Skill Level", o.SkillLevel),
		set("MultiPV", o.MultiPV),
	}
	if o.LimitStrength && o.Elo > 0 {
		out = append(out, set("UCI_LimitStrength", true), set("UCI_Elo", o.Elo))
	}
	return out
}

// Limits bound one search. At least one field must be set.
type Limits struct {
	Depth          int
	MoveTimeMillis int
	NodeCap        int
}

func (l Limits) GoArgs() ([]string, error) {
	args := []string{"go"}
	for _, f := range []struct {
		key string
		v   int
	}{{"depth", l.Depth}, {"movetime", l.MoveTimeMillis}, {"nodes", l.NodeCap}} {
		if f.v > 0 {
			args = append(args, f.key, strconv.Itoa(f.v))
		}
	}
	if len(args) == 1 {
		return nil, errors.New("no search limits specified")
	}
	return args, nil
}

// deadline is how long a search may run before it is stopped.
func (l Limits) deadline() time.Duration {
	switch {
	case l.MoveTimeMillis > 0:
		return time.Duration(l.MoveTimeMillis+2000) * time.Millisecond * 3
	case l.Depth > 0:
		return min(max(time.Duration(l.Depth)*300*time.Millisecond, 6*time.Second), 20*time.Second)
	}
	return 6 * time.Second
}

func positionLine(fen string, moves []string) string {
	fen = strings.TrimSpace(fen)
	line := "position startpos"
	if fen != "" && fen != "startpos" {
		line = "position fen " + fen
	}
	if len(moves) > 0 {
		line += " moves " + strings.Join(moves, " ")
	}
	return line
}

// Candidate is one principal variation reported by the engine.
type Candidate struct {
	Move      string
	EvalCP    int
	Principal []string
}

// info is the subset of an "info" line the robot cares about.
type info struct {
	rank int
	cand Candidate
}

func parseInfo(line string) (info, bool) {
	f := strings.Fields(line)
	if len(f) == 0 || f[0] != "info" {
		return info{}, false
	}
	out := info{rank: 1}
	for i := 1; i < len(f); i++ {
		switch f[i] {
		case "multipv":
			if i+1 < len(f) {
				if v, err := strconv.Atoi(f[i+1]); err == nil {
					out.rank = v
				}
				i++
			}
		case "score":
			if i+2 < len(f) {
				out.cand.EvalCP = scoreCP(f[i+1], f[i+2])
				i += 2
			}
		case "pv":
			if i+1 >= len(f) {
				return info{}, false
			}
			out.cand.Move = f[i+1]
			out.cand.Principal = slices.Clone(f[i+1:])
			return out, true
		}
	}
	return info{}, false
}

func scoreCP(unit, raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if unit != "mate" {
		return v
	}
	if v < 0 {
		return -mateScore
	}
	return mateScore
}

func parseBestMove(line string) (string, bool) {
	f := strings.Fields(line)
	if len(f) < 2 || f[0] != "bestmove" {
		return "", false
	}
	switch f[1] {
	case "(none)", "0000":
		return "", false
	}
	return f[1], true
}

// candidates keeps the deepest report per multipv rank.
type candidates map[int]Candidate

func (c candidates) add(in info) { c[in.rank] = in.cand }

func (c candidates) ranked() []Candidate {
	if len(c) == 0 {
		return nil
	}
	keys := slices.SortedFunc(maps.Keys(c), cmp.Compare[int])
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, c[k])
	}
	return out
}
