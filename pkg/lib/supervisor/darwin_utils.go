//go:build !linux

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

// SysProcAttr pairs the process attributes with an optional cgroup handle.
// File is always nil outside Linux.
type SysProcAttr struct {
	File *os.File
	Raw  *syscall.SysProcAttr
}

var errNoCgroups = errors.New("cgroups are not supported on this platform")

func GetSysProcAttr(id string, opts CgroupOptions) (*SysProcAttr, error) {
	return &SysProcAttr{
		Raw: &syscall.SysProcAttr{
			// New process group to kill the shell and ssh as a unit
			Setpgid: true,
		}}, nil
}

func KillCgroup(id string, opts CgroupOptions) error {
	return errNoCgroups
}

func CleanupCgroup(id string, opts CgroupOptions) error {
	return nil
}
