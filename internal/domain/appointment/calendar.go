package appointment

import (
	"sort"
	"time"

	"github.com/clinicops/clinic/pkg/civil"
)

// GridCells is the fixed size of a month view: six weeks starting on Sunday.
const GridCells = 42

type Cell struct {
	Date         civil.Date    `json:"date"`
	InMonth      bool          `json:"in_month"`
	Appointments []Appointment `json:"appointments"`
}

type MonthGrid struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Cells []Cell     `json:"cells"`
}

// BuildMonth lays out the month on a 42-cell grid. The first cell is the
// Sunday on or before the 1st. Only appointments on in-month cells are
// placed; each cell is ordered by time.
func BuildMonth(year int, month time.Month, appts []Appointment) MonthGrid {
	first := civil.Date{Year: year, Month: month, Day: 1}
	start := first.AddDays(-int(first.Weekday()))

	byDate := make(map[civil.Date][]Appointment)
	for _, a := range appts {
		if a.Date.Year == year && a.Date.Month == month {
			byDate[a.Date] = append(byDate[a.Date], a)
		}
	}

	grid := MonthGrid{Year: year, Month: month, Cells: make([]Cell, GridCells)}
	for i := range grid.Cells {
		d := start.AddDays(i)
		cell := Cell{Date: d, InMonth: d.SameMonth(first), Appointments: []Appointment{}}
		if cell.InMonth {
			cell.Appointments = DayView(d, byDate[d])
		}
		grid.Cells[i] = cell
	}
	return grid
}

// DayView returns the appointments on date ordered by time.
func DayView(date civil.Date, appts []Appointment) []Appointment {
	out := []Appointment{}
	for _, a := range appts {
		if a.Date == date {
			out = append(out, a)
		}
	}
	sortByTime(out)
	return out
}

func sortByTime(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if c := appts[i].Date.Compare(appts[j].Date); c != 0 {
			return c < 0
		}
		return appts[i].Time < appts[j].Time
	})
}

// MonthRange returns the first and last day of the month.
func MonthRange(year int, month time.Month) (civil.Date, civil.Date) {
	first := civil.Date{Year: year, Month: month, Day: 1}
	next := civil.DateOf(first.Time().AddDate(0, 1, 0))
	return first, next.AddDays(-1)
}

// ParseMonth reads "YYYY-MM".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}
