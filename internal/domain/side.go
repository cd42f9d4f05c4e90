package domain

// Side represents the direction of a trade fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// IsBuy reports whether the side is BUY.
func (s Side) IsBuy() bool {
	return s == SideBuy
}
