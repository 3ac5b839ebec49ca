package engine

import (
	"path/filepath"
	"sync"

	"github.com/lxc/incus/v6/shared/util"
)

// SuccessMarker is the zero-byte file whose presence in the working
// directory tells the guard the conversion completed and rollback must be
// skipped.
const SuccessMarker = "done"

// Guard is the process-wide cleanup finalizer. It is armed once, at the
// first successful transfer creation, and runs exactly once regardless of
// exit path. A termination signal may invoke it concurrently with Setup, so
// all state lives under the mutex and Run never assumes the control
// goroutine reached any particular phase.
type Guard struct {
	mu sync.Mutex

	armed   bool
	workDir string
	runner  Runner
	params  *Params

	daemons     []ExportDaemon
	transferIDs []string
	diskUUIDs   []string
}

func NewGuard(workDir string, runner Runner, params *Params) *Guard {
	return &Guard{
		workDir: workDir,
		runner:  runner,
		params:  params,
	}
}

// Arm enables the guard. Safe to call more than once.
func (g *Guard) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.armed = true
}

// RegisterTransfer records an opened transfer and the disk UUID it created,
// so a failure later in Setup still rolls this transfer back.
func (g *Guard) RegisterTransfer(transferID string, diskUUID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transferIDs = append(g.transferIDs, transferID)
	g.diskUUIDs = append(g.diskUUIDs, diskUUID)
}

// RegisterDaemon records a started export daemon. Registration happens
// before Setup moves to the next disk, so an already-started daemon is never
// orphaned by a later failure.
func (g *Guard) RegisterDaemon(daemon ExportDaemon) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.daemons = append(g.daemons, daemon)
}

// TakeDaemons hands the registered daemons over to the caller and clears the
// list, so the guard will not re-signal processes the finalize phase already
// stopped.
func (g *Guard) TakeDaemons() []ExportDaemon {
	g.mu.Lock()
	defer g.mu.Unlock()

	daemons := g.daemons
	g.daemons = nil

	return daemons
}

// Run terminates any remaining export daemons and, unless the success marker
// exists, rolls back the opened transfers and disks. Idempotent; the second
// invocation finds empty lists and does nothing.
func (g *Guard) Run() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return
	}

	for _, daemon := range g.daemons {
		// A daemon may have exited already; per-process errors don't matter.
		_ = daemon.Terminate()
	}

	g.daemons = nil

	if util.PathExists(filepath.Join(g.workDir, SuccessMarker)) {
		return
	}

	if len(g.diskUUIDs) == 0 {
		return
	}

	Cancel(g.runner, g.params, g.transferIDs, g.diskUUIDs)

	g.transferIDs = nil
	g.diskUUIDs = nil
}
