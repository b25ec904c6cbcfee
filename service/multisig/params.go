package multisig

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date form of the From and To parameters.
const DateLayout = "2006-01-02"

// QueryParams is the textual form of a query as it arrives from a URL or
// command line flags.
type QueryParams struct {
	Status    string
	Type      string
	Members   []string
	Tokens    []string
	From      string
	To        string
	MinAmount string
	MaxAmount string
	Sort      string
	Page      int
	PageSize  int
}

// ParamsFromValues reads query parameters from URL values. Members and tokens
// may repeat.
func ParamsFromValues(v url.Values) (QueryParams, error) {
	p := QueryParams{
		Status:    v.Get("status"),
		Type:      v.Get("type"),
		Members:   v["member"],
		Tokens:    v["token"],
		From:      v.Get("from"),
		To:        v.Get("to"),
		MinAmount: v.Get("min_amount"),
		MaxAmount: v.Get("max_amount"),
		Sort:      v.Get("sort"),
	}
	var err error
	if p.Page, err = optionalInt(v, "page"); err != nil {
		return p, err
	}
	if p.PageSize, err = optionalInt(v, "page_size"); err != nil {
		return p, err
	}
	return p, nil
}

func optionalInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, s)
	}
	return n, nil
}

// Values encodes the parameters as URL values, omitting empty ones.
func (p QueryParams) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("status", p.Status)
	set("type", p.Type)
	for _, m := range p.Members {
		v.Add("member", m)
	}
	for _, t := range p.Tokens {
		v.Add("token", t)
	}
	set("from", p.From)
	set("to", p.To)
	set("min_amount", p.MinAmount)
	set("max_amount", p.MaxAmount)
	set("sort", p.Sort)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return v
}

// Parse validates the parameters and builds the filter, sort key and page
// request they describe. Dates are read as calendar dates in loc. Every
// invalid parameter is reported.
func (p QueryParams) Parse(loc *time.Location) (Filter, SortKey, PageRequest, error) {
	if loc == nil {
		loc = time.Local
	}
	var errs []error
	f := Filter{Members: p.Members, Tokens: p.Tokens, Location: loc}

	var err error
	if f.Status, err = ParseStatusFilter(p.Status); err != nil {
		errs = append(errs, err)
	}
	if f.Type, err = ParseTypeFilter(p.Type); err != nil {
		errs = append(errs, err)
	}
	if f.From, err = parseDate("from", p.From, loc); err != nil {
		errs = append(errs, err)
	}
	if f.To, err = parseDate("to", p.To, loc); err != nil {
		errs = append(errs, err)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		errs = append(errs, fmt.Errorf("to %s is before from %s", p.To, p.From))
	}
	if f.MinAmount, err = parseBound("min_amount", p.MinAmount); err != nil {
		errs = append(errs, err)
	}
	if f.MaxAmount, err = parseBound("max_amount", p.MaxAmount); err != nil {
		errs = append(errs, err)
	}
	key, err := ParseSortKey(p.Sort)
	if err != nil {
		errs = append(errs, err)
	}
	if p.PageSize < 0 {
		errs = append(errs, fmt.Errorf("page_size cannot be negative"))
	}

	if len(errs) > 0 {
		return Filter{}, "", PageRequest{}, errors.Join(errs...)
	}
	return f, key, PageRequest{Index: p.Page, Size: p.PageSize}, nil
}

func parseDate(name, s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q: want YYYY-MM-DD", name, s)
	}
	return t, nil
}

func parseBound(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &d, nil
}
