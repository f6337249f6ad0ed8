// Package choreo turns classified chess moves into the ordered pick/place
// waypoints the arm executes.
package choreo

import "fmt"

type Kind int

const (
	KindMove Kind = iota
	KindCapture
	KindPromotion
	KindCapturePromotion
)

// The controller polls these names; writer and waiter share this table.
var fileNames = map[Kind]string{
	KindMove:             "move.txt",
	KindCapture:          "capture.txt",
	KindPromotion:        "promotion.txt",
	KindCapturePromotion: "capture_promotion.txt",
}

var kindNames = map[Kind]string{
	KindMove:             "move",
	KindCapture:          "capture",
	KindPromotion:        "promotion",
	KindCapturePromotion: "capture_promotion",
}

func (k Kind) FileName() string { return fileNames[k] }

func (k Kind) Valid() bool {
	_, ok := fileNames[k]
	return ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Waypoints is the fixed choreography length for a kind.
func (k Kind) Waypoints() int {
	switch k {
	case KindMove:
		return 2
	case KindCapture, KindPromotion:
		return 4
	case KindCapturePromotion:
		return 6
	}
	return 0
}

func Kinds() []Kind {
	return []Kind{KindMove, KindCapture, KindPromotion, KindCapturePromotion}
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown choreography kind %q", s)
}
