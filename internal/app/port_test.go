package service_test

import "net"

// freeUDPPort asks the kernel for an unused UDP port.
func freeUDPPort() int {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
