package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayDecodesBothEncodings(t *testing.T) {
	var direct stringArray
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &direct))
	assert.Equal(t, stringArray{"a", "b"}, direct)

	// Gamma frequently double-encodes arrays as strings.
	var nested stringArray
	require.NoError(t, json.Unmarshal([]byte(`"[\"123\",\"456\"]"`), &nested))
	assert.Equal(t, stringArray{"123", "456"}, nested)

	var empty stringArray
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.Nil(t, empty)
}

func TestFlexBool(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`"true"`:  true,
		`"True"`:  true,
		`"1"`:     true,
		`"false"`: false,
		`"0"`:     false,
	}
	for raw, want := range cases {
		var f flexBool
		require.NoError(t, json.Unmarshal([]byte(raw), &f), raw)
		assert.Equal(t, want, bool(f), raw)
	}
}

func TestToDomainMarket(t *testing.T) {
	raw := `{
		"id": "501234",
		"question": "Bitcoin Up or Down - 14:00",
		"slug": "btc-updown-15m-1766099700",
		"active": "true",
		"clobTokenIds": "[\"111\",\"222\"]"
	}`
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	start := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	dm, err := m.ToDomainMarket("btc", start)
	require.NoError(t, err)

	assert.Equal(t, "501234", dm.ID)
	assert.Equal(t, "btc", dm.Symbol)
	assert.Equal(t, "111", dm.YesTokenID)
	assert.Equal(t, "222", dm.NoTokenID)
	assert.Equal(t, start, dm.IntervalStart)
	assert.Equal(t, start.Add(15*time.Minute), dm.IntervalEnd)
}

func TestToDomainMarketMissingTokens(t *testing.T) {
	m := APIMarket{Slug: "btc-updown-15m-1", ClobTokenIDs: stringArray{"only-one"}}
	_, err := m.ToDomainMarket("btc", time.Now())
	assert.Error(t, err)
}

func TestResolution(t *testing.T) {
	yesWon := APIMarket{Closed: true, OutcomePrices: stringArray{"1", "0"}}
	res := yesWon.Resolution()
	assert.True(t, res.Resolved())
	assert.True(t, res.YesWon)

	noWon := APIMarket{Closed: true, OutcomePrices: stringArray{"0", "1"}}
	res = noWon.Resolution()
	assert.True(t, res.Resolved())
	assert.False(t, res.YesWon)

	// Closed but not yet priced must not count as resolved.
	pending := APIMarket{Closed: true}
	assert.False(t, pending.Resolution().Resolved())

	// Still trading.
	open := APIMarket{Closed: false, OutcomePrices: stringArray{"0.48", "0.52"}}
	assert.False(t, open.Resolution().Resolved())
}

func TestOrderResultToFill(t *testing.T) {
	ok := APIOrderResult{
		Success:      true,
		OrderID:      "0xabc",
		Status:       "matched",
		MakingAmount: "50",
		TakingAmount: "100",
	}
	fill := ok.ToFill("tok")
	assert.Equal(t, "tok", fill.TokenID)
	assert.Equal(t, 50.0, fill.Cost)
	assert.Equal(t, 100.0, fill.Contracts)
	assert.InDelta(t, 0.5, fill.AvgPrice, 1e-9)
	assert.True(t, fill.Filled())

	rejected := APIOrderResult{Success: false, ErrorMsg: "not enough liquidity"}
	fill = rejected.ToFill("tok")
	assert.False(t, fill.Filled())
	assert.Zero(t, fill.Cost)
}

func TestToBookUpdate(t *testing.T) {
	book := WSBookMessage{
		AssetID: "tok",
		Asks: []WSPriceLevel{
			{Price: "0.60", Size: "50"},
			{Price: "0.55", Size: "0"},   // exhausted level
			{Price: "bad", Size: "10"},   // malformed level
			{Price: "0.58", Size: "120"}, // best usable ask
		},
		Timestamp: "1787234700000",
	}

	u := book.ToBookUpdate()
	assert.Equal(t, "tok", u.AssetID)
	assert.Equal(t, 0.58, u.BestAsk)
	assert.Equal(t, 120.0, u.AskSize)
	assert.Equal(t, int64(1787234700000), u.ObservedAt.UnixMilli())
}

func TestToBookUpdateNoAsks(t *testing.T) {
	book := WSBookMessage{AssetID: "tok", Timestamp: "1787234700"}
	u := book.ToBookUpdate()
	assert.Zero(t, u.BestAsk)
	assert.Equal(t, int64(1787234700), u.ObservedAt.Unix())
}

func TestParseWSTimestamp(t *testing.T) {
	assert.Equal(t, int64(1787234700), parseWSTimestamp("1787234700").Unix())
	assert.Equal(t, int64(1787234700123), parseWSTimestamp("1787234700123").UnixMilli())
}
