package suggest

// goodDayScore is the minimum day score that counts as a "good" day.
const goodDayScore = 3

// ScoreDay rates one day's comfort from mean temperature (°C) and mean
// precipitation (mm). A day with either value missing scores -1, which
// can never be good.
//
//	+2 for t in [22,32], +1 for [20,22) or (32,34]
//	+2 for r < 1, +1 for r <= 5
//	-2 for t > 35, -2 for r > 10
func ScoreDay(t, r *float64) int {
	if t == nil || r == nil {
		return -1
	}

	s := 0
	switch {
	case *t >= 22 && *t <= 32:
		s += 2
	case (*t >= 20 && *t < 22) || (*t > 32 && *t <= 34):
		s++
	}
	switch {
	case *r < 1:
		s += 2
	case *r <= 5:
		s++
	}
	if *t > 35 {
		s -= 2
	}
	if *r > 10 {
		s -= 2
	}
	return s
}
