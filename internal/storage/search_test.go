package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/types"
)

func seedSearchCorpus(t *testing.T, s *Store) {
	t.Helper()
	base := float64(time.Now().Unix())
	rows := []*types.Message{
		{Kind: types.KindACARS, Timestamp: base - 30, StationID: "EAST-1", Text: "climb to FL350", Tail: "N12345", Flight: "UAL42", ICAO: "A1B2C3", Label: "H1", Freq: "131.550"},
		{Kind: types.KindACARS, Timestamp: base - 20, StationID: "EAST-1", Text: "descend and maintain", Tail: "N67890", Flight: "DAL77", ICAO: "AB12CD", Label: "Q0", Freq: "130.025"},
		{Kind: types.KindVDLM2, Timestamp: base - 10, StationID: "WEST-2", Text: "position report", Tail: "N12345", Flight: "UAL42", ICAO: "A1B2C3", Label: "H1", Freq: "136.975"},
	}
	for _, m := range rows {
		_, err := s.AddMessage(m)
		require.NoError(t, err)
	}
}

func TestSearchByTailPrefix(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	res, err := s.Search(SearchQuery{Tail: "N123"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	for _, m := range res.Messages {
		assert.Equal(t, "N12345", m.Tail)
	}
}

func TestSearchICAOUsesSubstring(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	// "B12" appears mid-string in AB12CD; FTS prefix matching would
	// miss it, the substring path must not.
	res, err := s.Search(SearchQuery{ICAO: "B12"})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "DAL77", res.Messages[0].Flight)
}

func TestSearchStationIDSubstring(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	res, err := s.Search(SearchQuery{StationID: "AST"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount) // substring of EAST-1, no prefix needed
}

func TestSearchKindAndTimeRange(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	res, err := s.Search(SearchQuery{Kind: "VDLM2"})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, types.KindVDLM2, res.Messages[0].Kind)

	future := float64(time.Now().Add(time.Hour).Unix())
	res, err = s.Search(SearchQuery{StartTime: future})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestSearchDefaultsAndPagination(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	res, err := s.Search(SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Messages, 3)
	// Default sort is time descending.
	assert.True(t, res.Messages[0].Timestamp >= res.Messages[1].Timestamp)

	page, err := s.Search(SearchQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Len(t, page.Messages, 1)
}

func TestSearchSanitizesFTSInput(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	// Hostile input must not produce an FTS syntax error.
	_, err := s.Search(SearchQuery{Text: `"dro\x00p" AND`})
	assert.NoError(t, err)
}

func TestSearchTextPrefix(t *testing.T) {
	s := openTestStore(t, Options{})
	seedSearchCorpus(t, s)

	res, err := s.Search(SearchQuery{Text: "clim"})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Contains(t, res.Messages[0].Text, "climb")
}
