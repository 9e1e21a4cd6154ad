package types

// Insight is a configured dashboard entry.
type Insight struct {
	// Insight short id.
	// example: aBc123Xy
	ID string `json:"id" example:"aBc123Xy"`
	// Display title.
	// example: Daily pageviews
	Title string `json:"title" example:"Daily pageviews"`
	// example: 1729152000
	CreatedUnix int64 `json:"created_unix" example:"1729152000"`
}

// InsightsResponse wraps GET /get-insights.
type InsightsResponse struct {
	Insights []Insight `json:"insights"`
}

// DeviceConfig is the device identity. The API key is never returned in
// full.
type DeviceConfig struct {
	// example: 12345
	TeamID string `json:"teamId" example:"12345"`
	// Masked API key.
	// example: phx_****wxyz
	APIKey string `json:"apiKey,omitempty" example:"phx_****wxyz"`
	// example: true
	HasAPIKey bool `json:"hasApiKey" example:"true"`
	// us or eu.
	// example: us
	Region string `json:"region,omitempty" example:"us"`
}

// Network is one Wi-Fi scan result.
type Network struct {
	// example: home-network
	SSID string `json:"ssid" example:"home-network"`
	// Signal quality 0-100.
	// example: 72
	Signal int `json:"rssi" example:"72"`
	// example: true
	Secure bool `json:"encrypted" example:"true"`
}

// NetworksResponse wraps GET /networks.
type NetworksResponse struct {
	Networks []Network `json:"networks"`
	// Time of the last completed scan as Unix seconds; 0 if none.
	// example: 1729152000
	ScannedUnix int64 `json:"scanned_unix" example:"1729152000"`
}
