//go:build unix

package instance

import (
	"golang.org/x/sys/unix"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
)

const pauseSupported = true

func suspendProcess(p *procmgr.Process) error {
	return p.Signal(unix.SIGSTOP)
}

func resumeProcess(p *procmgr.Process) error {
	return p.Signal(unix.SIGCONT)
}
