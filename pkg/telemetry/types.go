package telemetry

import (
	"strconv"
	"time"
)

// QueryResponse is the envelope of the Prometheus HTTP query API.
type QueryResponse struct {
	Status string    `json:"status"`
	Data   QueryData `json:"data"`
	Error  string    `json:"error,omitempty"`
}

// QueryData carries the typed result payload. Instant vector results populate
// Value, range (matrix) results populate Values.
type QueryData struct {
	ResultType string         `json:"resultType"`
	Result     []SeriesResult `json:"result"`
}

// SeriesResult is one metric stream within a query result.
type SeriesResult struct {
	Metric map[string]string `json:"metric"`
	Value  SamplePair        `json:"value,omitempty"`
	Values []SamplePair      `json:"values,omitempty"`
}

// SamplePair is Prometheus' [timestamp, value] encoding.
type SamplePair [2]interface{}

// Timestamp returns the sample timestamp, or the zero time when malformed.
func (sp SamplePair) Timestamp() time.Time {
	if ts, ok := sp[0].(float64); ok {
		return time.Unix(int64(ts), 0)
	}
	return time.Time{}
}

// Value returns the sample value, or 0 when malformed.
func (sp SamplePair) Value() float64 {
	switch v := sp[1].(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	}
	return 0
}
