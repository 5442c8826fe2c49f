//go:build linux

package platform

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"

	"markestedt/keyroute/rules"
)

const (
	mprisPrefix    = "org.mpris.MediaPlayer2."
	mprisPath      = "/org/mpris/MediaPlayer2"
	mprisPlayer    = "org.mpris.MediaPlayer2.Player"
	playerctldName = "org.mpris.MediaPlayer2.playerctld"
	volumeStep     = 0.05
)

var mprisMethods = map[rules.Action]string{
	rules.MediaPlayPause: "PlayPause",
	rules.MediaNext:      "Next",
	rules.MediaPrev:      "Previous",
	rules.MediaStop:      "Stop",
}

// MPRISOutput drives media players over the D-Bus session bus.
// Browser navigation keys have no MPRIS equivalent.
type MPRISOutput struct {
	mu         sync.Mutex
	conn       *dbus.Conn
	lastVolume float64
}

// NewOutput creates the MPRIS output. The bus is connected on first
// use.
func NewOutput() Output {
	return &MPRISOutput{}
}

// Emit sends the MPRIS call for a to the preferred player.
func (o *MPRISOutput) Emit(ctx context.Context, a rules.Action) error {
	if !a.Synthetic() {
		return nil
	}
	if a == rules.BrowserBack || a == rules.BrowserForward {
		return fmt.Errorf("%s: %w", a, ErrUnsupported)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	conn, err := o.session()
	if err != nil {
		return err
	}
	name, err := findPlayer(ctx, conn)
	if err != nil {
		return err
	}
	obj := conn.Object(name, mprisPath)

	if method, ok := mprisMethods[a]; ok {
		if err := obj.CallWithContext(ctx, mprisPlayer+"."+method, 0).Err; err != nil {
			return fmt.Errorf("failed to call %s on %s: %w", method, name, err)
		}
		return nil
	}
	return o.adjustVolume(obj, a)
}

func (o *MPRISOutput) session() (*dbus.Conn, error) {
	if o.conn != nil && o.conn.Connected() {
		return o.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	o.conn = conn
	return conn, nil
}

func (o *MPRISOutput) adjustVolume(obj dbus.BusObject, a rules.Action) error {
	v, err := obj.GetProperty(mprisPlayer + ".Volume")
	if err != nil {
		return fmt.Errorf("failed to read volume: %w", err)
	}
	cur, _ := v.Value().(float64)

	next := cur
	switch a {
	case rules.VolumeUp:
		next = min(cur+volumeStep, 1)
	case rules.VolumeDown:
		next = max(cur-volumeStep, 0)
	case rules.VolumeMute:
		if cur > 0 {
			o.lastVolume = cur
			next = 0
		} else {
			next = o.lastVolume
		}
	default:
		return fmt.Errorf("%s: %w", a, ErrUnsupported)
	}

	if err := obj.SetProperty(mprisPlayer+".Volume", dbus.MakeVariant(next)); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

func findPlayer(ctx context.Context, conn *dbus.Conn) (string, error) {
	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}

	players := lo.Filter(names, func(n string, _ int) bool {
		return strings.HasPrefix(n, mprisPrefix)
	})
	if len(players) == 0 {
		return "", fmt.Errorf("no MPRIS media player is running")
	}
	if slices.Contains(players, playerctldName) {
		return playerctldName, nil
	}
	slices.Sort(players)
	return players[0], nil
}
