package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/types"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	alerts.DestroyCache()
	s, err := Open(":memory:", opts, alerts.GetCache(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleMessage(kind types.Kind, text string) *types.Message {
	return &types.Message{
		Kind:      kind,
		Timestamp: float64(time.Now().Unix()),
		StationID: "TEST-STATION",
		Text:      text,
		Tail:      "N12345",
		Flight:    "UAL42",
		ICAO:      "A1B2C3",
		Freq:      "131.550",
		Label:     "H1",
	}
}

func TestAddMessagePersistsNonEmpty(t *testing.T) {
	s := openTestStore(t, Options{})
	res, err := s.AddMessage(sampleMessage(types.KindACARS, "hello world"))
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.NotEmpty(t, res.UID)

	counts, err := s.GetMessageCounts()
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Total)
	assert.EqualValues(t, 1, counts.Good)
}

func TestAddMessageSkipsEmpty(t *testing.T) {
	s := openTestStore(t, Options{})
	m := &types.Message{Kind: types.KindVDLM2, Timestamp: float64(time.Now().Unix()), Freq: "136.975"}
	res, err := s.AddMessage(m)
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Empty(t, res.UID)

	nl, err := s.GetNonloggedCounts()
	require.NoError(t, err)
	assert.EqualValues(t, 1, nl.Good)

	counts, err := s.GetMessageCounts()
	require.NoError(t, err)
	assert.EqualValues(t, 0, counts.Total)

	// Frequency counts on arrival, persisted or not.
	freqs, err := s.FrequencyCounts(types.KindVDLM2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, freqs["136.975"])
}

func TestSaveAllPersistsEmpty(t *testing.T) {
	s := openTestStore(t, Options{SaveAll: true})
	m := &types.Message{Kind: types.KindHFDL, Timestamp: float64(time.Now().Unix())}
	res, err := s.AddMessage(m)
	require.NoError(t, err)
	assert.True(t, res.Saved)
}

func TestAddMessageUIDsAreUnique(t *testing.T) {
	s := openTestStore(t, Options{})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := s.AddMessage(sampleMessage(types.KindACARS, fmt.Sprintf("msg %d", i)))
		require.NoError(t, err)
		require.False(t, seen[res.UID], "uid %q repeated", res.UID)
		seen[res.UID] = true
	}
}

func TestAddMessageAlertScenario(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.SetAlertTerms([]string{"UAL123", "N8560Z"}))

	m := &types.Message{
		Kind:      types.KindACARS,
		Timestamp: float64(time.Now().Unix()),
		Text:      "UAL123 departed",
		ICAO:      "ABCDEF",
		Tail:      "N8560Z",
		Flight:    "UAL123",
	}
	res, err := s.AddMessage(m)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, []string{"UAL123"}, res.MatchedText)
	assert.Equal(t, []string{"UAL123"}, res.MatchedFlight)
	assert.Equal(t, []string{"N8560Z"}, res.MatchedTail)
	assert.Empty(t, res.MatchedICAO)

	counts, err := s.GetAlertCounts()
	require.NoError(t, err)
	byTerm := map[string]int64{}
	for _, tc := range counts {
		byTerm[tc.Term] = tc.Count
	}
	assert.EqualValues(t, 2, byTerm["UAL123"])
	assert.EqualValues(t, 1, byTerm["N8560Z"])
}

func TestIgnoreTermSuppressesMatch(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.SetAlertTerms([]string{"UAL"}))
	require.NoError(t, s.SetAlertIgnore([]string{"TEST"}))

	m := &types.Message{
		Kind:      types.KindACARS,
		Timestamp: float64(time.Now().Unix()),
		Text:      "UAL test flight",
	}
	res, err := s.AddMessage(m)
	require.NoError(t, err)
	assert.False(t, res.Matched)

	matches, err := s.SearchAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSetAlertTermsReplacesSet(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.SetAlertTerms([]string{"ONE", "TWO"}))
	require.NoError(t, s.SetAlertTerms([]string{"two", "THREE"}))

	counts, err := s.GetAlertCounts()
	require.NoError(t, err)
	var terms []string
	for _, tc := range counts {
		terms = append(terms, tc.Term)
	}
	assert.ElementsMatch(t, []string{"TWO", "THREE"}, terms)

	cachedTerms, _ := s.cache.Snapshot()
	assert.ElementsMatch(t, []string{"TWO", "THREE"}, cachedTerms)
}

func TestStationIDTracking(t *testing.T) {
	s := openTestStore(t, Options{})
	added, err := s.AddStationID("STN-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddStationID("STN-1")
	require.NoError(t, err)
	assert.False(t, added)

	ids, err := s.StationIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"STN-1"}, ids)
}
