package domain

import "time"

// RobotGame is one finished game played against the arm.
type RobotGame struct {
	ID             int64
	SessionUUID    string
	RobotID        string
	HumanColor     string
	Preset         string
	Result         string
	ResultMethod   string
	MovesUCI       []string
	MovesSAN       []string
	PGN            string
	Handshakes     int
	CapturesStored int
	QueensStaged   int
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
}
