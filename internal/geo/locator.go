package geo

import (
	"fmt"
	"time"
)

// Location source modes.
const (
	ModeAuto   = "auto"
	ModeStatic = "static"
	ModeIPInfo = "ipinfo"
	ModeOff    = "off"
)

// NewLocator picks the location source for mode. In auto mode configured
// coordinates win over the ipinfo lookup.
func NewLocator(mode string, static *Static, ipinfoToken string, timeout time.Duration) (Locator, error) {
	switch mode {
	case ModeAuto, "":
		if static != nil {
			return *static, nil
		}
		return NewIPInfo("", ipinfoToken, timeout), nil
	case ModeStatic:
		if static == nil {
			return nil, fmt.Errorf("location mode %q requires latitude and longitude", mode)
		}
		return *static, nil
	case ModeIPInfo:
		return NewIPInfo("", ipinfoToken, timeout), nil
	case ModeOff:
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown location mode %q", mode)
	}
}
