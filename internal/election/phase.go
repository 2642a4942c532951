package election

import "fmt"

// Phase is the server's view of how far the election has progressed.
// Phases only ever move forward; no phase is revisited.
type Phase int

const (
	Registering Phase = iota
	KeyDistribution
	Collecting
	Tallying
	Challenging
	Verifying
	Closed
)

func (p Phase) String() string {
	switch p {
	case Registering:
		return "Registering"
	case KeyDistribution:
		return "KeyDistribution"
	case Collecting:
		return "Collecting"
	case Tallying:
		return "Tallying"
	case Challenging:
		return "Challenging"
	case Verifying:
		return "Verifying"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
