package multisig

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPageSize is the number of records on one page.
const DefaultPageSize = 30

// FilterAll selects every value of a status or type filter.
const FilterAll = "All"

// SortKey orders display records.
type SortKey string

const (
	SortNewest SortKey = "newest"
	SortOldest SortKey = "oldest"
	SortAmount SortKey = "amount"
)

// ParseSortKey parses a sort key. Empty selects SortNewest.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortAmount:
		return key, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Filter selects display records. Every set criterion must hold; zero values
// select everything.
type Filter struct {
	Status Status
	Type   TypeTag
	// Members matches records involving any of the listed addresses.
	Members []string
	// Tokens matches records whose token symbol or address is listed.
	Tokens []string
	// From and To are calendar dates, both inclusive, in Location.
	From     time.Time
	To       time.Time
	Location *time.Location
	// MinAmount and MaxAmount bound the display amount, inclusive.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// ParseStatusFilter parses a status filter choice, "All" and empty mean no filter.
func ParseStatusFilter(s string) (Status, error) {
	if s == "" || strings.EqualFold(s, FilterAll) {
		return "", nil
	}
	return ParseStatus(s)
}

// ParseTypeFilter parses a type filter choice given as a tag, alias or filter
// label. "All" and empty mean no filter.
func ParseTypeFilter(s string) (TypeTag, error) {
	if s == "" || strings.EqualFold(s, FilterAll) {
		return "", nil
	}
	if tag, err := ParseTypeTag(s); err == nil {
		return tag, nil
	}
	for _, tag := range TypeTags {
		if strings.EqualFold(registry[tag].Label, s) {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type filter %q", s)
}

// Match reports whether r satisfies every criterion of f.
func (f Filter) Match(r Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Type != "" && r.Transaction.Type != f.Type {
		return false
	}
	if len(f.Members) > 0 && !f.involves(r) {
		return false
	}
	if len(f.Tokens) > 0 && !f.holdsToken(r) {
		return false
	}
	if !f.inDateRange(r.Transaction.CreatedAt) {
		return false
	}
	if f.MinAmount != nil || f.MaxAmount != nil {
		amount := parseDisplayAmount(r.Amount)
		if f.MinAmount != nil && amount.LessThan(*f.MinAmount) {
			return false
		}
		if f.MaxAmount != nil && amount.GreaterThan(*f.MaxAmount) {
			return false
		}
	}
	return true
}

// Apply returns the records matching f, in input order.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) involves(r Record) bool {
	for _, m := range f.Members {
		if slices.Contains(r.Involved, NormalizeAddress(m)) {
			return true
		}
	}
	return false
}

func (f Filter) holdsToken(r Record) bool {
	if r.TokenAddress == "" {
		return false
	}
	addr := NormalizeAddress(r.TokenAddress)
	for _, t := range f.Tokens {
		if strings.EqualFold(t, r.Token) || NormalizeAddress(t) == addr {
			return true
		}
	}
	return false
}

func (f Filter) inDateRange(t time.Time) bool {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	if !f.From.IsZero() && t.Before(startOfDay(f.From, loc)) {
		return false
	}
	if !f.To.IsZero() && !t.Before(startOfDay(f.To, loc).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// startOfDay returns midnight in loc of the calendar date d names.
func startOfDay(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// Sort returns a copy of records ordered by key. Ties keep their input order.
func Sort(records []Record, key SortKey) []Record {
	out := slices.Clone(records)
	switch key {
	case SortOldest:
		slices.SortStableFunc(out, func(a, b Record) int {
			return a.Transaction.CreatedAt.Compare(b.Transaction.CreatedAt)
		})
	case SortAmount:
		slices.SortStableFunc(out, func(a, b Record) int {
			return parseDisplayAmount(b.Amount).Cmp(parseDisplayAmount(a.Amount))
		})
	default:
		slices.SortStableFunc(out, func(a, b Record) int {
			return b.Transaction.CreatedAt.Compare(a.Transaction.CreatedAt)
		})
	}
	return out
}

// PageRequest selects a 1-based page.
type PageRequest struct {
	Index int `json:"page"`
	Size  int `json:"page_size"`
}

// Page is one page of a filtered and sorted record set.
type Page struct {
	Records    []Record `json:"transactions"`
	Index      int      `json:"page"`
	Size       int      `json:"page_size"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
}

// Paginate cuts one page out of records. An index below 1 selects the first
// page; an index past the last page yields an empty page.
func Paginate(records []Record, req PageRequest) Page {
	size := req.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	index := max(req.Index, 1)

	p := Page{
		Records:    []Record{},
		Index:      index,
		Size:       size,
		Total:      len(records),
		TotalPages: (len(records) + size - 1) / size,
	}
	start := (index - 1) * size
	if start >= len(records) {
		return p
	}
	end := min(start+size, len(records))
	p.Records = records[start:end:end]
	return p
}

// Query filters, sorts and paginates records.
func Query(records []Record, f Filter, key SortKey, req PageRequest) Page {
	return Paginate(Sort(f.Apply(records), key), req)
}

// View is the state of a list a consumer is showing.
type View struct {
	Filter   Filter
	Sort     SortKey
	Page     int
	PageSize int
	// Expanded is the id of the expanded row, empty when none is.
	Expanded string
}

// NewView returns the initial view: newest first, page 1.
func NewView(pageSize int) View {
	return View{Sort: SortNewest, Page: 1, PageSize: pageSize}
}

// WithFilter replaces the filter, returning to page 1 with no expanded row.
func (v View) WithFilter(f Filter) View {
	v.Filter = f
	v.Page = 1
	v.Expanded = ""
	return v
}

// WithDateRange replaces the date range, returning to page 1 with no expanded row.
func (v View) WithDateRange(from, to time.Time) View {
	f := v.Filter
	f.From, f.To = from, to
	return v.WithFilter(f)
}

// WithSort changes the ordering and keeps the current page.
func (v View) WithSort(key SortKey) View {
	v.Sort = key
	return v
}

// WithPage moves to page n and collapses the expanded row.
func (v View) WithPage(n int) View {
	v.Page = max(n, 1)
	v.Expanded = ""
	return v
}

// Toggle expands the row with the given id, or collapses it if it already is.
func (v View) Toggle(id string) View {
	if v.Expanded == id {
		v.Expanded = ""
	} else {
		v.Expanded = id
	}
	return v
}

// Apply runs the view over records.
func (v View) Apply(records []Record) Page {
	return Query(records, v.Filter, v.Sort, PageRequest{Index: v.Page, Size: v.PageSize})
}
