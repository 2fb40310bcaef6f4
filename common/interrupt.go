package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted relays the signals that stop a tracker.
// It buffers two so a second signal can force an exit.
func Interrupted() <-chan os.Signal {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	return c
}
