//go:build !windows && !linux

package platform

var nativeKeyNames = map[uint32]string{}
