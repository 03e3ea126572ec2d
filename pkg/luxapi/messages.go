// Package luxapi describes the luxpipe.LightService gRPC API. Messages are
// plain structs carried by a JSON codec.
package luxapi

// LightReading is one averaged value of a channel.
type LightReading struct {
	Id        int64   `json:"id,omitempty"`
	Channel   string  `json:"channel"`
	Lux       float64 `json:"lux"`
	Timestamp int64   `json:"timestamp"` // unix seconds
	Category  string  `json:"category"`
}

type GetCurrentLightRequest struct {
	Channel string `json:"channel"`
}

// GetCurrentLightResponse carries the live value of a channel. When the
// sensor stopped responding Available is false, Message says why and
// Reading holds the last value shown.
type GetCurrentLightResponse struct {
	Reading   *LightReading `json:"reading"`
	Available bool          `json:"available"`
	Message   string        `json:"message,omitempty"`
}

// GetHistoryRequest selects history entries with
// StartTime <= timestamp < EndTime, both unix seconds.
type GetHistoryRequest struct {
	Channel   string `json:"channel"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
}

type GetHistoryResponse struct {
	Readings   []*LightReading `json:"readings"`
	AverageLux float64         `json:"average_lux"`
	MinLux     float64         `json:"min_lux"`
	MaxLux     float64         `json:"max_lux"`
}

type RecordReadingRequest struct {
	Channel string  `json:"channel"`
	Lux     float64 `json:"lux"`
}

type RecordReadingResponse struct {
	Reading *LightReading `json:"reading"`
}
