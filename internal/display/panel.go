package display

import (
	"fmt"

	"deskhogd/internal/actions"
	"deskhogd/internal/eventbus"
	"deskhogd/internal/ota"
	"deskhogd/internal/uidispatch"
)

// StatusPanel mirrors bus events onto the screen. Its bus callback never
// touches the screen; it dispatches closures that the display loop runs.
type StatusPanel struct {
	ui     *uidispatch.Queue
	screen *Screen
	unsub  func()
}

// AttachStatusPanel subscribes a panel to bus.
func AttachStatusPanel(bus eventbus.Subscriber, ui *uidispatch.Queue, screen *Screen) *StatusPanel {
	p := &StatusPanel{ui: ui, screen: screen}
	p.unsub = bus.Subscribe(p.onEvent)
	return p
}

// Close unsubscribes the panel.
func (p *StatusPanel) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *StatusPanel) onEvent(e eventbus.Event) {
	field, value, prio, ok := render(e)
	if !ok {
		return
	}
	p.ui.Dispatch(func() { p.screen.Set(field, value) }, prio)
}

func render(e eventbus.Event) (field, value string, prio uidispatch.Priority, ok bool) {
	switch e.Kind {
	case eventbus.KindWiFiConnecting:
		return FieldWiFi, "Connecting to " + e.SubjectID, uidispatch.Normal, true
	case eventbus.KindWiFiConnected:
		return FieldWiFi, "Connected: " + e.SubjectID, uidispatch.Normal, true
	case eventbus.KindWiFiConnectionFailed:
		return FieldWiFi, "Connection failed", uidispatch.Normal, true
	case eventbus.KindWiFiAPStarted:
		return FieldWiFi, "Setup mode: join the DeskHog network", uidispatch.Normal, true
	case eventbus.KindUpdateStateChanged:
		st, isStatus := e.Payload.(ota.Status)
		if !isStatus {
			return "", "", 0, false
		}
		v := st.Message
		if st.State == ota.StateDownloading || st.State == ota.StateWriting {
			v = fmt.Sprintf("%s %d%%", st.Message, st.Progress)
		}
		return FieldUpdate, v, uidispatch.Normal, true
	case eventbus.KindActionCompleted:
		out, isOutcome := e.Payload.(actions.Outcome)
		if !isOutcome {
			return "", "", 0, false
		}
		mark := "ok"
		if !out.Success {
			mark = "failed"
		}
		return FieldLastAction, fmt.Sprintf("%s %s: %s", out.Kind, mark, out.Message), uidispatch.Front, true
	case eventbus.KindInsightAdded:
		return FieldInsights, "Added " + e.SubjectID, uidispatch.Normal, true
	case eventbus.KindInsightDeleted:
		return FieldInsights, "Removed " + e.SubjectID, uidispatch.Normal, true
	}
	return "", "", 0, false
}
