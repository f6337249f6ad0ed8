package robotdto

type StorageLeft struct {
	WhiteCapture int
	WhiteQueens  int
	BlackCapture int
	BlackQueens  int
}

// MoveStatus describes one move as it was handed to the arm.
type MoveStatus struct {
	SessionUUID string
	Side        string // "human" | "robot"
	Color       string
	UCI         string
	SAN         string
	Kind        string
	File        string
	Waypoints   []string
	Coordinates []string
	MoveNumber  int
	FEN         string
}

type SessionState struct {
	SessionUUID   string
	RobotID       string
	HumanColor    string
	Preset        string
	Status        string
	Turn          string
	FEN           string
	MovesUCI      []string
	MovesSAN      []string
	MoveCount     int
	Handshake     string
	PendingFile   string
	Storage       StorageLeft
	Outcome       string
	OutcomeMethod string
	BoardImage    []byte
}

type GameResult struct {
	SessionUUID string
	Outcome     string
	Method      string
	Winner      string
	MoveCount   int
	PGN         string
	GameID      int64
}
