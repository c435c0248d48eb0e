package formulation

import "math"

type RadarPoint struct {
	Axis  Axis    `json:"axis"`
	Angle float64 `json:"angle"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// RadarPoints places score i at angle 2πi/n − π/2 (first axis at the top),
// at distance radius·score/100 from the origin.
func RadarPoints(scores []PriorityScore, radius float64) []RadarPoint {
	n := len(scores)
	if n == 0 {
		return nil
	}
	out := make([]RadarPoint, n)
	for i, s := range scores {
		angle := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		r := radius * clamp(s.Score) / maxScore
		out[i] = RadarPoint{
			Axis:  s.Axis,
			Angle: angle,
			X:     r * math.Cos(angle),
			Y:     r * math.Sin(angle),
		}
	}
	return out
}
