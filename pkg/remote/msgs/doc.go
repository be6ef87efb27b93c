// Package msgs defines the remote protocol: the messages exchanged between
// a bridge serving a target and the tools driving it, and the Typed
// envelope carrying them.
//
// Commands go to the bridge and are answered with a reply carrying the
// same sequence. Events flow from the bridge unsolicited.
package msgs
