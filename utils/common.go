package utils

const (
	NODETOL = 1.e-12
)

// IsFinite is false for NaN and both infinities.
func IsFinite(x float64) bool {
	return x-x == 0
}
