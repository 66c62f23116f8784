package delivery

import "github.com/aqura-labs/pushrelay/internal/domain"

// Action is a button rendered on the platform notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// DisplayOptions tune how persistently the platform presents a notification.
type DisplayOptions struct {
	RequireInteraction bool     `json:"requireInteraction"`
	Renotify           bool     `json:"renotify"`
	Silent             bool     `json:"silent"`
	Vibration          []int    `json:"vibrate,omitempty"`
	Actions            []Action `json:"actions,omitempty"`
}

// OptionsFor picks display options by device class. Installed apps on mobile
// get the strongest persistence because the platform is most likely to
// collapse or auto-dismiss there.
func OptionsFor(deviceType domain.DeviceType, installedApp bool) DisplayOptions {
	switch {
	case deviceType == domain.DeviceMobile && installedApp:
		return DisplayOptions{
			RequireInteraction: true,
			Renotify:           true,
			Vibration:          []int{300, 100, 300, 100, 300},
			Actions:            []Action{{Action: "open", Title: "Open"}},
		}
	case deviceType == domain.DeviceMobile:
		return DisplayOptions{
			RequireInteraction: true,
			Vibration:          []int{200, 100, 200, 100, 200},
			Actions:            []Action{{Action: "open", Title: "Open"}},
		}
	default:
		return DisplayOptions{
			Vibration: []int{200, 100, 200},
			Actions: []Action{
				{Action: "view", Title: "View"},
				{Action: "dismiss", Title: "Dismiss"},
			},
		}
	}
}
