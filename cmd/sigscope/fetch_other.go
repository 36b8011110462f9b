//go:build !linux

package main

import (
	"errors"

	"sigscope/internal/snapshot"
)

func fetchSerial(device string, baud int, params snapshot.Parameters) ([]byte, error) {
	return nil, errors.New("serial fetch is only supported on linux")
}
