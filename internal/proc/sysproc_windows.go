//go:build windows

package proc

import (
	"fmt"
	"os/exec"
	"syscall"

	winapi "golang.org/x/sys/windows"
)

func groupAttr() *syscall.SysProcAttr {
	// Create a new process group so taskkill /T terminates the entire tree
	return &syscall.SysProcAttr{CreationFlags: winapi.CREATE_NEW_PROCESS_GROUP}
}

// detachedAttr also drops the console, so a password prompt has nowhere to read from.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: winapi.CREATE_NEW_PROCESS_GROUP | winapi.DETACHED_PROCESS}
}

func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return errNoProcess
	}
	return exec.Command("taskkill", "/PID", fmt.Sprint(cmd.Process.Pid), "/T").Run()
}

func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return errNoProcess
	}
	return exec.Command("taskkill", "/PID", fmt.Sprint(cmd.Process.Pid), "/T", "/F").Run()
}
