package model

type PriorityTier int

const (
	TierRegular PriorityTier = iota
	TierHigh
)

func (t PriorityTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	default:
		return "regular"
	}
}
