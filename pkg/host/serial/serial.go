// Package serial opens the character line to a target: a UART device or a
// TCP endpoint such as a simulator.
package serial

import (
	"io"
	"net"
	"strings"

	"github.com/golang/glog"
	"github.com/jacobsa/go-serial/serial"
)

// DefaultBaudRate is the line rate of the boot agent UART.
const DefaultBaudRate = 115200

// TCPScheme prefixes a TCP target.
const TCPScheme = "tcp://"

// PortOptions returns the 8N1 options for device.
func PortOptions(device string, baudRate uint) serial.OpenOptions {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return serial.OpenOptions{
		PortName:        device,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
}

// Open opens target, either tcp://host:port or a serial device.
func Open(target string, baudRate uint) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(target, TCPScheme) {
		glog.V(2).Infof("dial %s", target)
		return net.Dial("tcp", target[len(TCPScheme):])
	}
	glog.V(2).Infof("open %s at %d baud", target, baudRate)
	return serial.Open(PortOptions(target, baudRate))
}
