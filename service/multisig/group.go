package multisig

import "time"

// DateLabelLayout renders a group heading, e.g. "Monday, January 2, 2006".
const DateLabelLayout = "Monday, January 2, 2006"

// DateGroup holds the records created on one calendar day.
type DateGroup struct {
	Label   string    `json:"label"`
	Date    time.Time `json:"date"`
	Records []Record  `json:"transactions"`
}

// GroupByDate buckets records by the calendar date of their creation time in
// loc. Groups appear in order of first occurrence and records keep their input
// order within a group. A nil loc means time.Local.
func GroupByDate(records []Record, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DateGroup
	index := make(map[time.Time]int)
	for _, r := range records {
		day := startOfDay(r.Transaction.CreatedAt.In(loc), loc)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DateGroup{Label: day.Format(DateLabelLayout), Date: day})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
