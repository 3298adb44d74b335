package grading

import "math"

// GradeFor maps a percentage to a letter grade. Lower bounds are inclusive.
func GradeFor(percentage float64) string {
	switch {
	case percentage >= 70:
		return "A"
	case percentage >= 60:
		return "B"
	case percentage >= 50:
		return "C"
	case percentage >= 45:
		return "D"
	case percentage >= 40:
		return "E"
	default:
		return "F"
	}
}

// Percentage returns total/max*100, or 0 when max is 0.
func Percentage(total, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return total / max * 100
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Position is the competition rank given how many released results score
// strictly higher. Equal percentages share a position.
func Position(strictlyHigher int64) int {
	return int(strictlyHigher) + 1
}
