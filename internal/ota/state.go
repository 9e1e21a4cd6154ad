package ota

// State is the coarse position of the update procedure.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateDownloading
	StateWriting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateDownloading:
		return "downloading"
	case StateWriting:
		return "writing"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Reason distinguishes failures. It is ReasonNone unless State is
// StateError.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNetwork
	ReasonTimeSync
	ReasonTransport
	ReasonMetadata
	ReasonNoAsset
	ReasonNoSpace
	ReasonDownload
	ReasonWrite
	ReasonVerify
	ReasonCommit
)

var reasonNames = [...]string{
	ReasonNone:      "",
	ReasonNetwork:   "network",
	ReasonTimeSync:  "time_sync",
	ReasonTransport: "transport",
	ReasonMetadata:  "metadata",
	ReasonNoAsset:   "no_asset",
	ReasonNoSpace:   "no_space",
	ReasonDownload:  "download",
	ReasonWrite:     "write",
	ReasonVerify:    "verify",
	ReasonCommit:    "commit",
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Status is what pollers see. Message is never empty and Progress is always
// within [0, 100].
type Status struct {
	State    State  `json:"state"`
	Reason   Reason `json:"reason,omitempty"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// Failed reports whether the status is a terminal error.
func (s Status) Failed() bool { return s.State == StateError }

// Legacy numeric codes understood by the original configuration portal.
const (
	CodeIdle              = 0
	CodeCheckingVersion   = 1
	CodeDownloading       = 2
	CodeWriting           = 3
	CodeSuccess           = 4
	CodeErrorWiFi         = 5
	CodeErrorHTTPCheck    = 6
	CodeErrorHTTPDownload = 7
	CodeErrorJSON         = 8
	CodeErrorUpdateBegin  = 9
	CodeErrorUpdateWrite  = 10
	CodeErrorUpdateEnd    = 11
	CodeErrorNoAsset      = 12
	CodeErrorNoSpace      = 13
)

// Code maps the status onto the legacy numeric code.
func (s Status) Code() int {
	switch s.State {
	case StateChecking:
		return CodeCheckingVersion
	case StateDownloading:
		return CodeDownloading
	case StateWriting:
		return CodeWriting
	case StateSuccess:
		return CodeSuccess
	case StateError:
		switch s.Reason {
		case ReasonNetwork:
			return CodeErrorWiFi
		case ReasonTimeSync, ReasonTransport:
			return CodeErrorHTTPCheck
		case ReasonDownload:
			return CodeErrorHTTPDownload
		case ReasonMetadata:
			return CodeErrorJSON
		case ReasonNoAsset:
			return CodeErrorNoAsset
		case ReasonNoSpace:
			return CodeErrorNoSpace
		case ReasonWrite:
			return CodeErrorUpdateWrite
		case ReasonVerify, ReasonCommit:
			return CodeErrorUpdateEnd
		}
		return CodeErrorUpdateBegin
	}
	return CodeIdle
}

func defaultMessage(s State) string {
	switch s {
	case StateChecking:
		return "Checking for updates..."
	case StateDownloading:
		return "Downloading firmware..."
	case StateWriting:
		return "Writing firmware..."
	case StateSuccess:
		return "Update successful! Rebooting..."
	case StateError:
		return "Update failed."
	default:
		return "Idle"
	}
}

func normalize(s Status) Status {
	if s.Progress < 0 {
		s.Progress = 0
	}
	if s.Progress > 100 {
		s.Progress = 100
	}
	if s.Message == "" {
		s.Message = defaultMessage(s.State)
	}
	if s.State != StateError {
		s.Reason = ReasonNone
	}
	return s
}

// Result describes the most recent check.
type Result struct {
	Available        bool
	CurrentVersion   string
	AvailableVersion string
	DownloadURL      string
	AssetSize        int64
	Digest           string
	Notes            string
	Error            string
}
