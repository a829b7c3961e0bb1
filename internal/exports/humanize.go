package exports

import "fmt"

// HumanizeHours renders a recovery time objective for documents. Exact
// multiples render in the largest fitting unit; anything else falls back to
// the coarsest applicable unit with the remainder dropped (30h -> "1 day").
func HumanizeHours(h *int) string {
	if h == nil {
		return "-"
	}
	v := *h
	switch {
	case v <= 0:
		return "Immediate"
	case v < 24:
		return plural(v, "hour")
	case v < 168:
		return plural(v/24, "day")
	default:
		return plural(v/168, "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
