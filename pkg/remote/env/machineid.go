// Package env holds the environment shared by bridge and connector
// configurations.
package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the machine id.
const AppID = "bebe"

// MachineID returns a stable id of this machine, protected by AppID so the
// raw machine id is never published. It is empty if the machine has no id.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return ""
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
