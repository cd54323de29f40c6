package surface

import "github.com/yuanying/zinespread/internal/flip"

// Kind names what a surface must do with an Update.
type Kind string

const (
	// KindFrame asks the surface to apply a frame and scale in place.
	KindFrame Kind = "frame"
	// KindReload asks the surface to fetch a fresh rendering.
	KindReload Kind = "reload"
	// KindFullscreen reports the host's fullscreen state.
	KindFullscreen Kind = "fullscreen"
)

// Update is sent from the host to a surface. It is a re-render trigger and
// never an acknowledgement of a particular command.
type Update struct {
	Kind       Kind        `json:"kind"`
	Frame      *flip.Frame `json:"frame,omitempty"`
	Scale      float64     `json:"scale,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Spread     int         `json:"spread"`
	Fullscreen bool        `json:"fullscreen,omitempty"`
}

// FrameUpdate carries a frame and the container scale.
func FrameUpdate(f flip.Frame, scale float64, unit string) Update {
	return Update{Kind: KindFrame, Frame: &f, Scale: scale, Unit: unit, Spread: f.Spread}
}

// ReloadUpdate asks the surface to reload at spread.
func ReloadUpdate(spread int) Update {
	return Update{Kind: KindReload, Spread: spread}
}

// FullscreenUpdate reports the fullscreen state.
func FullscreenUpdate(on bool, spread int) Update {
	return Update{Kind: KindFullscreen, Fullscreen: on, Spread: spread}
}

// Channel delivers updates to one surface. Delivery is at most once; callers
// treat errors as "surface unavailable" and carry on.
type Channel interface {
	Send(Update) error
	Close() error
}
