package types

// ActionResponse acknowledges a queued action. The action runs later; poll
// GET /api/status for its outcome.
type ActionResponse struct {
	// True when the action was queued.
	// example: true
	Success bool `json:"success" example:"true"`
	// queued or queue_full.
	// example: queued
	Status string `json:"status" example:"queued"`
	// Action identifier, echoed in the outcome once it completes.
	// example: 01J9Z7Q4X8M2N5P3R6S9T1V4W7
	ID string `json:"id,omitempty" example:"01J9Z7Q4X8M2N5P3R6S9T1V4W7"`
	// Action kind.
	// example: save_wifi
	Kind string `json:"kind" example:"save_wifi"`
	// Optional human-readable detail.
	// example: action queue full, try again shortly
	Message string `json:"message,omitempty" example:"action queue full, try again shortly"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: ssid is required
	Error string `json:"error" example:"ssid is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ActionOutcome is the result of the most recently completed action.
type ActionOutcome struct {
	// example: 01J9Z7Q4X8M2N5P3R6S9T1V4W7
	ID string `json:"id,omitempty" example:"01J9Z7Q4X8M2N5P3R6S9T1V4W7"`
	// Kind of the last completed action, or none.
	// example: save_wifi
	Kind string `json:"kind" example:"save_wifi"`
	// example: true
	Success bool `json:"success" example:"true"`
	// example: WiFi credentials saved for home-network
	Message string `json:"message" example:"WiFi credentials saved for home-network"`
	// Completion time as Unix seconds; 0 before the first action.
	// example: 1729152000
	CompletedUnix int64 `json:"completed_unix" example:"1729152000"`
}

// UpdateStatus is the firmware update procedure state.
type UpdateStatus struct {
	// idle, checking, downloading, writing, success or error.
	// example: downloading
	State string `json:"state" example:"downloading"`
	// Failure reason when state is error.
	// example: no_space
	Reason string `json:"reason,omitempty" example:"no_space"`
	// Legacy numeric status code used by the configuration portal.
	// example: 2
	Code int `json:"code" example:"2"`
	// Percent complete of the current phase, 0-100.
	// example: 42
	Progress int `json:"progress" example:"42"`
	// example: Downloading firmware...
	Message string `json:"message" example:"Downloading firmware..."`
}

// UpdateInfo is the result of the last update check.
type UpdateInfo struct {
	// example: true
	UpdateAvailable bool `json:"updateAvailable" example:"true"`
	// example: v1.0.0
	CurrentVersion string `json:"currentVersion" example:"v1.0.0"`
	// example: v1.1.0
	AvailableVersion string `json:"availableVersion,omitempty" example:"v1.1.0"`
	// example: https://github.com/PostHog/DeskHog/releases/download/v1.1.0/firmware.bin
	DownloadURL string `json:"downloadUrl,omitempty" example:"https://github.com/PostHog/DeskHog/releases/download/v1.1.0/firmware.bin"`
	// Size of the firmware image in bytes when advertised.
	// example: 1572864
	AssetSize int64 `json:"assetSize,omitempty" example:"1572864"`
	// example: Bug fixes
	ReleaseNotes string `json:"releaseNotes,omitempty" example:"Bug fixes"`
	// example: HTTP error: 503
	Error string `json:"error,omitempty" example:"HTTP error: 503"`
}

// UpdateStatusResponse is returned by GET /update-status.
type UpdateStatusResponse struct {
	Status UpdateStatus `json:"status"`
	Result UpdateInfo   `json:"result"`
	// True while a check or update runs.
	// example: false
	Busy bool `json:"busy" example:"false"`
}

// WiFiStatus summarizes the wireless link.
type WiFiStatus struct {
	// idle, connecting, connected, failed or ap.
	// example: connected
	State string `json:"state" example:"connected"`
	// example: home-network
	SSID string `json:"ssid,omitempty" example:"home-network"`
	// example: true
	Connected bool `json:"connected" example:"true"`
	// example: auth rejected
	LastError string `json:"last_error,omitempty" example:"auth rejected"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	// Kind of the action currently executing, or none.
	// example: none
	ActionInProgress string `json:"action_in_progress" example:"none"`
	// example: 01J9Z7Q4X8M2N5P3R6S9T1V4W7
	ActionInProgressID string `json:"action_in_progress_id,omitempty" example:"01J9Z7Q4X8M2N5P3R6S9T1V4W7"`
	// Actions queued but not yet started.
	// example: 0
	PendingActions int `json:"pending_actions" example:"0"`
	// example: 5
	MaxQueueSize int           `json:"max_queue_size" example:"5"`
	LastAction   ActionOutcome `json:"last_action"`
	Update       UpdateStatus  `json:"update"`
	UpdateResult UpdateInfo    `json:"update_result"`
	WiFi         WiFiStatus    `json:"wifi"`
	// Events dropped because the bus was full.
	// example: 0
	EventsDropped uint64 `json:"events_dropped" example:"0"`
	// UI updates dropped because the display queue was full.
	// example: 0
	UIUpdatesDropped uint64 `json:"ui_updates_dropped" example:"0"`
	// example: v1.0.0
	Version string `json:"version" example:"v1.0.0"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1729152000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1729152000"`
}
