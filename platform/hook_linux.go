//go:build linux

package platform

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"markestedt/keyroute/rules"
)

const (
	evKey    = 0x01
	evRel    = 0x02
	relWheel = 0x08

	keyReleased = 0
	keyPressed  = 1
	keyRepeated = 2
)

// inputEvent mirrors struct input_event from linux/input.h.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EvdevHook reads key events and wheel notches from /dev/input
// devices. The devices are not grabbed, so original events always
// reach applications.
type EvdevHook struct {
	devices []string
}

// NewInputHook creates the evdev reader.
func NewInputHook(opts Options) InputHook {
	return &EvdevHook{devices: opts.Devices}
}

// CanSuppress is false: evdev readers only observe.
func (h *EvdevHook) CanSuppress() bool { return false }

// Run reads every device and hands events to handler one at a time.
func (h *EvdevHook) Run(ctx context.Context, handler Handler) error {
	paths, err := h.resolveDevices()
	if err != nil {
		return err
	}

	var files []*os.File
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			slog.Warn("Skipping input device", "path", p, "error", err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return fmt.Errorf("failed to open any input device (need read access to /dev/input)")
	}
	slog.Info("Reading input devices", "count", len(files))

	events := make(chan Event, 64)
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			readDevice(ctx, f, events)
		}(f)
	}

	go func() {
		<-ctx.Done()
		for _, f := range files {
			f.Close()
		}
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		handler(ev)
	}
	return nil
}

func (h *EvdevHook) resolveDevices() ([]string, error) {
	if len(h.devices) > 0 {
		return h.devices, nil
	}
	var paths []string
	for _, pattern := range []string{"/dev/input/by-path/*-event-kbd", "/dev/input/by-path/*-event-mouse"} {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to list input devices: %w", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		paths, _ = filepath.Glob("/dev/input/event*")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input devices found")
	}
	return paths, nil
}

func readDevice(ctx context.Context, f *os.File, out chan<- Event) {
	for {
		var raw inputEvent
		if err := binary.Read(f, binary.NativeEndian, &raw); err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Error("Input device read failed", "path", f.Name(), "error", err)
			}
			return
		}
		sec, nsec := raw.Time.Unix()
		at := time.Unix(sec, nsec)

		if raw.Type == evRel && raw.Code == relWheel && raw.Value != 0 {
			dir := rules.ScrollUp
			if raw.Value < 0 {
				dir = rules.ScrollDown
			}
			select {
			case out <- Event{Scroll: dir, Time: at}:
			case <-ctx.Done():
				return
			}
			continue
		}
		if raw.Type != evKey {
			continue
		}

		var t Transition
		switch raw.Value {
		case keyPressed, keyRepeated:
			t = Down
		case keyReleased:
			t = Up
		default:
			continue
		}

		select {
		case out <- Event{Key: KeyForCode(uint32(raw.Code)), Transition: t, Time: at}:
		case <-ctx.Done():
			return
		}
	}
}
