package main

import (
	"net"
	"strconv"
	"time"
)

// portBusy reports whether something already accepts connections on
// host:port. A worker launched onto a busy port fails to bind and halts
// startup, so config check can warn about it ahead of time.
func portBusy(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
