//go:build linux

package main

import (
	"sigscope/internal/frontend"
	"sigscope/internal/snapshot"
)

func fetchSerial(device string, baud int, params snapshot.Parameters) ([]byte, error) {
	reader, err := frontend.OpenSerial(device, baud, params)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return reader.ReadRaw()
}
