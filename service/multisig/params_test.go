package multisig

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromValues(t *testing.T) {
	v, err := url.ParseQuery("status=Pending&type=token_send&member=0xa&member=0xb&token=STRK&from=2024-03-01&to=2024-03-02&min_amount=1.5&sort=amount&page=2&page_size=10")
	require.NoError(t, err)

	p, err := ParamsFromValues(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa", "0xb"}, p.Members)
	assert.Equal(t, []string{"STRK"}, p.Tokens)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PageSize)

	assert.Equal(t, v, p.Values())

	_, err = ParamsFromValues(url.Values{"page": {"two"}})
	assert.ErrorContains(t, err, "invalid page")
}

func TestQueryParams_Parse(t *testing.T) {
	p := QueryParams{
		Status:    "Pending",
		Type:      "Token Transfer",
		Members:   []string{bob},
		From:      "2024-03-01",
		To:        "2024-03-02",
		MinAmount: "1.5",
		Sort:      "oldest",
		Page:      3,
		PageSize:  5,
	}

	f, key, req, err := p.Parse(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, StatusInitiated, f.Status)
	assert.Equal(t, TypeTokenSend, f.Type)
	assert.Equal(t, []string{bob}, f.Members)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), f.To)
	require.NotNil(t, f.MinAmount)
	assert.Equal(t, "1.5", f.MinAmount.String())
	assert.Nil(t, f.MaxAmount)
	assert.Equal(t, SortOldest, key)
	assert.Equal(t, PageRequest{Index: 3, Size: 5}, req)
}

func TestQueryParams_ParseDefaults(t *testing.T) {
	f, key, req, err := QueryParams{Status: "All", Type: "All"}.Parse(nil)
	require.NoError(t, err)

	assert.Empty(t, f.Status)
	assert.Empty(t, f.Type)
	assert.Equal(t, time.Local, f.Location)
	assert.Equal(t, SortNewest, key)
	assert.Equal(t, PageRequest{}, req)
}

func TestQueryParams_ParseReportsEveryError(t *testing.T) {
	_, _, _, err := QueryParams{
		Status:    "Cancelled",
		Type:      "MULTICALL",
		From:      "03/01/2024",
		MaxAmount: "lots",
		Sort:      "largest",
		PageSize:  -1,
	}.Parse(time.UTC)
	require.Error(t, err)

	for _, want := range []string{"Cancelled", "MULTICALL", "from", "max_amount", "largest", "page_size"} {
		assert.Contains(t, err.Error(), want)
	}

	_, _, _, err = QueryParams{From: "2024-03-02", To: "2024-03-01"}.Parse(time.UTC)
	assert.ErrorContains(t, err, "before")
}
