package actions

import "strings"

// Kind identifies a queued action. The set is closed and indexes the
// handler table directly.
type Kind int

const (
	KindNone Kind = iota
	KindScanNetworks
	KindSaveWiFi
	KindSaveDeviceConfig
	KindSaveInsight
	KindDeleteInsight
	KindCheckUpdate
	KindStartUpdate

	kindCount
)

var kindNames = [kindCount]string{
	KindNone:             "none",
	KindScanNetworks:     "scan_networks",
	KindSaveWiFi:         "save_wifi",
	KindSaveDeviceConfig: "save_device_config",
	KindSaveInsight:      "save_insight",
	KindDeleteInsight:    "delete_insight",
	KindCheckUpdate:      "check_update",
	KindStartUpdate:      "start_update",
}

func (k Kind) String() string {
	if !k.valid() && k != KindNone {
		return "invalid"
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k Kind) valid() bool { return k > KindNone && k < kindCount }

// ParseKind maps a name as produced by String back to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindScanNetworks; k < kindCount; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindNone, false
}

// Kinds lists every submittable kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindScanNetworks; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
