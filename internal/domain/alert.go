package domain

// VolumeAlert is emitted when a token's 24h volume at least doubles between
// two consecutive refreshes.
type VolumeAlert struct {
	Token          Token   `json:"token"`
	Spike          float64 `json:"spike"` // current/previous
	PreviousVolume float64 `json:"previousVolume"`
	CurrentVolume  float64 `json:"currentVolume"`
	Timestamp      int64   `json:"timestamp"` // ms
}
