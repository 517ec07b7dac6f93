package llama

import (
	"encoding/json"
	"strconv"
	"time"
)

// PoolEntry is one pool from the aggregator's /pools endpoint, carrying
// metadata plus the latest observed fields. Numeric fields are pointers:
// the aggregator omits or nulls fields it has no observation for.
type PoolEntry struct {
	Pool       string `json:"pool"`
	Project    string `json:"project"`
	Chain      string `json:"chain"`
	Symbol     string `json:"symbol"`
	PoolMeta   string `json:"poolMeta"`
	Category   string `json:"category"`
	Stablecoin bool   `json:"stablecoin"`

	TVLUSD    *float64 `json:"tvlUsd"`
	APY       *float64 `json:"apy"`
	APYBase   *float64 `json:"apyBase"`
	APYReward *float64 `json:"apyReward"`
}

// HistoryPoint is one point from the /chart/{pool} endpoint.
type HistoryPoint struct {
	Timestamp FlexTime `json:"timestamp"`
	TVLUSD    *float64 `json:"tvlUsd"`
	APY       *float64 `json:"apy"`
	APYBase   *float64 `json:"apyBase"`
	APYReward *float64 `json:"apyReward"`
}

// poolsResponse is the envelope of the /pools endpoint.
type poolsResponse struct {
	Status string      `json:"status"`
	Data   []PoolEntry `json:"data"`
}

// chartResponse is the envelope of the /chart/{pool} endpoint.
type chartResponse struct {
	Status string         `json:"status"`
	Data   []HistoryPoint `json:"data"`
}

// FlexTime normalizes the aggregator's two timestamp encodings, an integer
// epoch-seconds value or an ISO-8601-like string, to epoch seconds.
//
// Unparseable timestamps set Valid to false instead of failing the decode:
// ingestion drops such points, they are not an error and must not poison the
// rest of a history payload.
type FlexTime struct {
	Unix  int64
	Valid bool
}

// timestamp string layouts accepted from the upstream API, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts a JSON number (epoch seconds, fractional part
// truncated), a numeric string, or a timestamp string in one of timeLayouts.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Unix = 0
	t.Valid = false

	// Literal null would decode as a float64 no-op below and pass for
	// epoch 0; it is an absent observation, not a timestamp.
	if string(data) == "null" {
		return nil
	}

	// Number: epoch seconds.
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Unix = int64(n)
		t.Valid = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Not a number, not a string: dropped by ingestion.
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Unix = v
		t.Valid = true
		return nil
	}

	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Unix = ts.Unix()
			t.Valid = true
			return nil
		}
	}

	return nil
}

// MarshalJSON encodes the timestamp as epoch seconds, or null when invalid.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Unix)
}
