package collective

import "fmt"

// Role is what a rank does in one reduction round.
type Role int

const (
	RoleIdle Role = iota
	RoleReceive
	RoleSend
)

func (r Role) String() string {
	switch r {
	case RoleIdle:
		return "idle"
	case RoleReceive:
		return "receive"
	case RoleSend:
		return "send"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Round is one step of the reduction as seen by a single rank.
type Round struct {
	S    int  // half-width of the round
	Role Role // what this rank does
	Peer int  // the partner rank, or -1 when idle
}

// RoleFor returns the role of rank in the round with half-width s of a group
// of size ranks.
//
// rank < s receives from rank+s when that rank exists; s <= rank < 2s sends to
// rank-s; everyone else idles.
func RoleFor(rank, size, s int) Round {
	switch {
	case rank < s:
		if rank+s < size {
			return Round{S: s, Role: RoleReceive, Peer: rank + s}
		}
	case rank < 2*s:
		return Round{S: s, Role: RoleSend, Peer: rank - s}
	}
	return Round{S: s, Role: RoleIdle, Peer: -1}
}

// Plan returns every round rank takes part in, in order. The group size is
// rounded up to a power of two so that no rank is left out; ranks whose
// partner does not exist idle in that round. A group of one has no rounds.
func Plan(rank, size int) []Round {
	var rounds []Round
	for s := nextPow2(size) / 2; s >= 1; s /= 2 {
		rounds = append(rounds, RoleFor(rank, size, s))
	}
	return rounds
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
