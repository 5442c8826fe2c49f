//go:build !windows && !linux

package platform

import (
	"context"

	"markestedt/keyroute/rules"
)

type unsupportedHook struct{}

// NewInputHook returns a hook that fails to start.
func NewInputHook(Options) InputHook {
	return unsupportedHook{}
}

func (unsupportedHook) CanSuppress() bool { return false }

func (unsupportedHook) Run(context.Context, Handler) error {
	return ErrUnsupported
}

type unsupportedOutput struct{}

// NewOutput returns an output that rejects every synthetic action.
func NewOutput() Output {
	return unsupportedOutput{}
}

func (unsupportedOutput) Emit(_ context.Context, a rules.Action) error {
	if !a.Synthetic() {
		return nil
	}
	return ErrUnsupported
}
