package eventbus

// Kind enumerates the events that travel over the bus. The set is closed;
// subscribers switch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindInsightAdded
	KindInsightDeleted
	KindWiFiCredentialsFound
	KindNeedWiFiCredentials
	KindWiFiConnecting
	KindWiFiConnected
	KindWiFiConnectionFailed
	KindWiFiAPStarted
	KindActionCompleted
	KindUpdateStateChanged
	KindNetworksScanned
	KindDeviceConfigChanged
)

var kindNames = [...]string{
	KindUnknown:              "unknown",
	KindInsightAdded:         "insight_added",
	KindInsightDeleted:       "insight_deleted",
	KindWiFiCredentialsFound: "wifi_credentials_found",
	KindNeedWiFiCredentials:  "need_wifi_credentials",
	KindWiFiConnecting:       "wifi_connecting",
	KindWiFiConnected:        "wifi_connected",
	KindWiFiConnectionFailed: "wifi_connection_failed",
	KindWiFiAPStarted:        "wifi_ap_started",
	KindActionCompleted:      "action_completed",
	KindUpdateStateChanged:   "update_state_changed",
	KindNetworksScanned:      "networks_scanned",
	KindDeviceConfigChanged:  "device_config_changed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Event is an immutable notification. SubjectID names the entity the event
// is about (an insight id, an SSID, an action id) and may be empty.
// Payload carries optional kind-specific data and must not be mutated once
// the event has been published.
type Event struct {
	Kind      Kind
	SubjectID string
	Payload   any
}

// Publisher is the producer side of the bus. Components that only emit
// events depend on this rather than on *Bus.
type Publisher interface {
	Publish(Event) bool
}

// Subscriber is the consumer side of the bus.
type Subscriber interface {
	Subscribe(func(Event)) func()
}

// Discard drops every event. It is the default publisher for components
// built without a bus.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) bool { return true }
