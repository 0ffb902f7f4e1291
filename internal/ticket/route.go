package ticket

import "tableside-pos/internal/order"

type Station string

const (
	Kitchen  Station = "KITCHEN"
	SushiBar Station = "SUSHI BAR"
)

// Ticket is the set of lines printed at one station.
type Ticket struct {
	Station Station
	Lines   []order.MenuLine
}

// Route partitions lines by station. Lines for both stations appear in full on
// each ticket. Stations with no lines get no ticket; the kitchen ticket comes
// first.
func Route(lines []order.MenuLine) []Ticket {
	var kitchen, sushi []order.MenuLine
	for _, line := range lines {
		switch line.Station {
		case order.StationSushiBar:
			sushi = append(sushi, line)
		case order.StationBoth:
			kitchen = append(kitchen, line)
			sushi = append(sushi, line)
		default:
			kitchen = append(kitchen, line)
		}
	}

	var out []Ticket
	if len(kitchen) > 0 {
		out = append(out, Ticket{Station: Kitchen, Lines: kitchen})
	}
	if len(sushi) > 0 {
		out = append(out, Ticket{Station: SushiBar, Lines: sushi})
	}
	return out
}
