package engine_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virt-tools/engine-upload/internal/engine"
)

// helperCall records one helper invocation, with a copy of the parameter set
// at invocation time.
type helperCall struct {
	script string
	params engine.Params
	args   []string
}

// stubRunner stands in for the Python helper scripts.
type stubRunner struct {
	calls []helperCall

	precheckResult map[string]any
	failOn         map[string]error

	// failTransferAt fails the Nth transfer invocation (0-based); -1 never.
	failTransferAt int
	transferCount  int
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		precheckResult: map[string]any{
			"rhv_storagedomain_uuid":       "11111111-2222-3333-4444-555555555555",
			"rhv_cluster_uuid":             "66666666-7777-8888-9999-aaaaaaaaaaaa",
			"rhv_cluster_cpu_architecture": "x86_64",
			"rhv_cluster_name":             "Default",
		},
		failOn:         map[string]error{},
		failTransferAt: -1,
	}
}

func (r *stubRunner) record(script string, params *engine.Params, args []string) {
	r.calls = append(r.calls, helperCall{script: script, params: *params, args: args})
}

func (r *stubRunner) Run(ctx context.Context, script string, params *engine.Params, args ...string) error {
	r.record(script, params, args)

	return r.failOn[script]
}

func (r *stubRunner) RunCapture(ctx context.Context, script string, params *engine.Params, args ...string) (map[string]any, error) {
	r.record(script, params, args)

	err := r.failOn[script]
	if err != nil {
		return nil, err
	}

	switch script {
	case engine.PrecheckScript:
		return r.precheckResult, nil

	case engine.TransferScript:
		n := r.transferCount
		r.transferCount++

		if n == r.failTransferAt {
			return nil, fmt.Errorf("Transfer rejected")
		}

		return map[string]any{
			"destination_url": fmt.Sprintf("https://daemon.example/images/ticket-%d", n),
			"transfer_id":     fmt.Sprintf("transfer-%d", n),
			"is_ovirt_host":   false,
		}, nil
	}

	return map[string]any{}, nil
}

// scriptCalls returns the recorded invocations of one script.
func (r *stubRunner) scriptCalls(script string) []helperCall {
	var calls []helperCall
	for _, c := range r.calls {
		if c.script == script {
			calls = append(calls, c)
		}
	}

	return calls
}

type stubDaemon struct {
	socket     string
	terminated int
	stopped    bool
	stopErr    error
}

func (d *stubDaemon) Socket() string {
	return d.socket
}

func (d *stubDaemon) URI() string {
	return "nbd+unix:///?socket=" + d.socket
}

func (d *stubDaemon) Terminate() error {
	d.terminated++
	return nil
}

func (d *stubDaemon) Stop(ctx context.Context) error {
	if d.stopErr != nil {
		return d.stopErr
	}

	d.stopped = true

	return nil
}

type stubLauncher struct {
	daemons []*stubDaemon

	// failAt fails the Nth launch (0-based); -1 never.
	failAt int

	stopErr error
}

func newStubLauncher() *stubLauncher {
	return &stubLauncher{failAt: -1}
}

func (l *stubLauncher) Launch(ctx context.Context, cfg engine.ExportConfig) (engine.ExportDaemon, error) {
	if l.failAt == len(l.daemons) {
		return nil, fmt.Errorf("Daemon refused to start")
	}

	d := &stubDaemon{
		socket:  fmt.Sprintf("/run/engine-upload/nbdkit-%d.sock", cfg.Ordinal),
		stopErr: l.stopErr,
	}

	l.daemons = append(l.daemons, d)

	return d, nil
}

type stubBuilder struct {
	info *engine.DescriptorInfo
}

func (b *stubBuilder) Build(info *engine.DescriptorInfo) ([]byte, error) {
	b.info = info
	return []byte("<Envelope/>"), nil
}

// testOptions returns valid upload options rooted in a fresh temp directory.
func testOptions(t *testing.T) engine.UploadOptions {
	t.Helper()

	workDir := t.TempDir()

	passwordFile := filepath.Join(workDir, "password")
	err := os.WriteFile(passwordFile, []byte("secret\n"), 0o600)
	require.NoError(t, err)

	return engine.UploadOptions{
		EngineURL:     "https://engine.example/ovirt-engine/api",
		PasswordFile:  passwordFile,
		StorageDomain: "data",
		Format:        "qcow2",
		VMName:        "test-vm",
		WorkDir:       workDir,
	}
}

func testDisks(sizes ...int64) []engine.DiskDescriptor {
	disks := make([]engine.DiskDescriptor, 0, len(sizes))
	for i, size := range sizes {
		disks = append(disks, engine.DiskDescriptor{Index: i, Size: size})
	}

	return disks
}
