package provider

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
	"github.com/rotblauer/motiond/params"
)

// OpenSerial opens the configured serial port at 8N1.
func OpenSerial(cfg *params.ProviderConfig) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.SerialPort, err)
	}
	return port, nil
}
