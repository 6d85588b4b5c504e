//go:build linux

package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// cgroupMount is where the unified cgroup v2 hierarchy is expected.
var cgroupMount = "/sys/fs/cgroup"

var (
	cgroupInitMu   sync.Mutex
	cgroupInitDone = map[string]error{}
)

// SysProcAttr pairs the process attributes with the cgroup directory handle
// that must stay open until the child has been started.
type SysProcAttr struct {
	File *os.File
	Raw  *syscall.SysProcAttr
}

// cgroupV2Mounted reports whether cgroupMount is a cgroup v2 root. Hybrid
// v1 hosts mount v2 elsewhere and lack cgroup.controllers here.
func cgroupV2Mounted() bool {
	_, err := os.Stat(filepath.Join(cgroupMount, "cgroup.controllers"))
	return err == nil
}

func cgroupDir(opts CgroupOptions) string {
	return filepath.Join(cgroupMount, opts.Root)
}

// initCgroups enables the cpu, io and memory controllers below the tunnel
// cgroup root. Real work happens once per root.
func initCgroups(opts CgroupOptions) error {
	root := cgroupDir(opts)

	cgroupInitMu.Lock()
	defer cgroupInitMu.Unlock()
	if err, ok := cgroupInitDone[root]; ok {
		return err
	}
	err := initCgroupsImpl(root)
	cgroupInitDone[root] = err
	return err
}

func initCgroupsImpl(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}

	available, err := readControllerSet(filepath.Join(root, "cgroup.controllers"))
	if err != nil {
		return err
	}
	enabled, err := readControllerSet(filepath.Join(root, "cgroup.subtree_control"))
	if err != nil {
		return err
	}

	var toAdd []string
	for _, ctrl := range []string{"cpu", "io", "memory"} {
		if available[ctrl] && !enabled[ctrl] {
			toAdd = append(toAdd, "+"+ctrl)
		}
	}
	if len(toAdd) > 0 {
		if err := writeString(filepath.Join(root, "cgroup.subtree_control"), strings.Join(toAdd, " ")); err != nil {
			return err
		}
	}
	return nil
}

func readControllerSet(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, f := range strings.Fields(string(data)) {
		set[strings.TrimPrefix(f, "+")] = true
	}
	return set, nil
}

// GetSysProcAttr returns attributes putting the tunnel in a new process
// group and, when enabled and running as root, into cgroup <root>/<id>.
// Without cgroup v2 it returns the process group attributes together with
// ErrCgroupsUnavailable.
func GetSysProcAttr(id string, opts CgroupOptions) (*SysProcAttr, error) {
	plain := &SysProcAttr{
		Raw: &syscall.SysProcAttr{Setpgid: true},
	}
	if !opts.Enabled {
		return plain, nil
	}
	if !cgroupV2Mounted() {
		return plain, fmt.Errorf("%w: no cgroup.controllers in %s", ErrCgroupsUnavailable, cgroupMount)
	}
	if os.Geteuid() != 0 {
		return plain, nil
	}

	if err := initCgroups(opts); err != nil {
		return nil, fmt.Errorf("init cgroup root: %w", err)
	}

	cgPath, err := setupCgroupFor(id, opts)
	if err != nil {
		return nil, fmt.Errorf("setup cgroup: %w", err)
	}

	cGroupFile, err := os.Open(cgPath)
	if err != nil {
		return nil, err
	}

	return &SysProcAttr{
		File: cGroupFile,
		Raw: &syscall.SysProcAttr{
			Setpgid:     true,
			UseCgroupFD: true,
			CgroupFD:    int(cGroupFile.Fd()),
		},
	}, nil
}

// KillCgroup kills every process in the tunnel cgroup.
func KillCgroup(id string, opts CgroupOptions) error {
	return writeString(filepath.Join(cgroupDir(opts), id, "cgroup.kill"), "1")
}

// CleanupCgroup removes the tunnel cgroup once it is empty.
func CleanupCgroup(id string, opts CgroupOptions) error {
	return os.Remove(filepath.Join(cgroupDir(opts), id))
}

func setupCgroupFor(id string, opts CgroupOptions) (string, error) {
	root := cgroupDir(opts)
	processRoot := filepath.Join(root, id)
	if err := os.MkdirAll(processRoot, 0755); err != nil {
		return "", err
	}

	if opts.CPUWeight > 0 && controllerEnabled(root, "cpu") {
		if err := writeString(filepath.Join(processRoot, "cpu.weight"), fmt.Sprint(opts.CPUWeight)); err != nil {
			return "", err
		}
	}
	if opts.IOWeight > 0 && controllerEnabled(root, "io") {
		if err := writeString(filepath.Join(processRoot, "io.weight"), fmt.Sprint(opts.IOWeight)); err != nil {
			return "", err
		}
	}
	if opts.MemoryHigh > 0 && controllerEnabled(root, "memory") {
		if err := writeString(filepath.Join(processRoot, "memory.high"), fmt.Sprint(opts.MemoryHigh)); err != nil {
			return "", err
		}
	}

	return processRoot, nil
}

func controllerEnabled(cgPath, controller string) bool {
	enabled, err := readControllerSet(filepath.Join(cgPath, "cgroup.subtree_control"))
	if err != nil {
		return false
	}
	return enabled[controller]
}

func writeString(path, val string) error {
	return os.WriteFile(path, []byte(val), 0644)
}
