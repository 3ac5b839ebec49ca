package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virt-tools/engine-upload/internal/engine"
	"github.com/virt-tools/engine-upload/internal/identity"
)

func TestSetupUUIDCountMismatchFailsBeforeRemoteCalls(t *testing.T) {
	opts := testOptions(t)
	opts.DiskUUIDs = []string{"123e4567-e89b-12d3-a456-426614174000"}

	runner := newStubRunner()
	launcher := newStubLauncher()
	uploader := engine.NewUploader(opts, runner, launcher)

	_, err := uploader.Setup(context.Background(), testDisks(1024, 2048), "source-vm")
	require.Error(t, err)
	require.True(t, engine.IsFailure(err, engine.FailureConfiguration))
	require.ErrorContains(t, err, "Expected 2 disk UUIDs")

	// No helper ran and no daemon started.
	require.Empty(t, runner.calls)
	require.Empty(t, launcher.daemons)
}

func TestSetupInvalidFormat(t *testing.T) {
	opts := testOptions(t)
	opts.Format = "vmdk"

	uploader := engine.NewUploader(opts, newStubRunner(), newStubLauncher())

	_, err := uploader.Setup(context.Background(), testDisks(1024), "source-vm")
	require.Error(t, err)
	require.True(t, engine.IsFailure(err, engine.FailureConfiguration))
}

func TestSetupVMCheckRunsBeforeTransfers(t *testing.T) {
	runner := newStubRunner()
	runner.failOn[engine.VMCheckScript] = &engine.Error{Kind: engine.FailureRemote, Err: context.DeadlineExceeded}

	launcher := newStubLauncher()
	uploader := engine.NewUploader(testOptions(t), runner, launcher)

	_, err := uploader.Setup(context.Background(), testDisks(1024), "source-vm")
	require.Error(t, err)

	// The name-collision check failed, so no transfer was ever opened.
	require.Empty(t, runner.scriptCalls(engine.TransferScript))
	require.Empty(t, launcher.daemons)

	// And with no transfers opened, the guard has nothing to roll back.
	uploader.Guard().Run()
	require.Empty(t, runner.scriptCalls(engine.CancelScript))
}

func TestSetupPartialFailureRollsBackOpenedTransfersOnly(t *testing.T) {
	runner := newStubRunner()
	runner.failTransferAt = 1

	launcher := newStubLauncher()
	uploader := engine.NewUploader(testOptions(t), runner, launcher)

	_, err := uploader.Setup(context.Background(), testDisks(1024, 2048, 4096), "source-vm")
	require.Error(t, err)

	// Disk 0's transfer opened and its daemon started; disk 1 failed; disk
	// 2 was never attempted.
	require.Len(t, launcher.daemons, 1)

	uploader.Guard().Run()

	require.Equal(t, 1, launcher.daemons[0].terminated)

	cancels := runner.scriptCalls(engine.CancelScript)
	require.Len(t, cancels, 1)
	require.Equal(t, []string{"transfer-0"}, cancels[0].params.TransferIDs)
	require.Len(t, cancels[0].params.DiskUUIDs, 1)
}

func TestSetupDaemonFailureStillRollsBackItsTransfer(t *testing.T) {
	runner := newStubRunner()
	launcher := newStubLauncher()
	launcher.failAt = 0

	uploader := engine.NewUploader(testOptions(t), runner, launcher)

	_, err := uploader.Setup(context.Background(), testDisks(1024), "source-vm")
	require.Error(t, err)
	require.True(t, engine.IsFailure(err, engine.FailureProcess))

	// The transfer was registered with the guard before the daemon start
	// was attempted, so rollback still covers it.
	uploader.Guard().Run()

	cancels := runner.scriptCalls(engine.CancelScript)
	require.Len(t, cancels, 1)
	require.Equal(t, []string{"transfer-0"}, cancels[0].params.TransferIDs)
}

func TestSetupResolvesRemoteIdentifiers(t *testing.T) {
	runner := newStubRunner()
	launcher := newStubLauncher()
	uploader := engine.NewUploader(testOptions(t), runner, launcher)

	state, err := uploader.Setup(context.Background(), testDisks(10*1024*1024*1024, 1024*1024*1024), "source-vm")
	require.NoError(t, err)

	require.Equal(t, "11111111-2222-3333-4444-555555555555", state.StorageDomainUUID)
	require.Equal(t, "66666666-7777-8888-9999-aaaaaaaaaaaa", state.ClusterUUID)
	require.Equal(t, "x86_64", state.ClusterArch)
	require.Equal(t, "Default", state.ClusterName)
	require.Equal(t, "test-vm", state.VMName)

	require.Len(t, state.Sessions, 2)
	require.NotEqual(t, state.Sessions[0].Daemon.Socket(), state.Sessions[1].Daemon.Socket())

	for _, session := range state.Sessions {
		require.True(t, session.Active())
		require.True(t, identity.ValidateUUID(session.DiskUUID))
	}

	// Generated disk UUIDs are part of the precheck parameter set.
	prechecks := runner.scriptCalls(engine.PrecheckScript)
	require.Len(t, prechecks, 1)
	require.Len(t, prechecks[0].params.RhvDiskUUIDs, 2)
	require.Equal(t, prechecks[0].params.RhvDiskUUIDs[0], state.Sessions[0].DiskUUID)
	require.Equal(t, prechecks[0].params.RhvDiskUUIDs[1], state.Sessions[1].DiskUUID)

	// Per-disk transfer parameters carry the declared sizes in order.
	transfers := runner.scriptCalls(engine.TransferScript)
	require.Len(t, transfers, 2)
	require.Equal(t, int64(10*1024*1024*1024), transfers[0].params.DiskSize)
	require.Equal(t, int64(1024*1024*1024), transfers[1].params.DiskSize)
}

func TestSetupUsesSourceNameWithoutOverride(t *testing.T) {
	opts := testOptions(t)
	opts.VMName = ""

	runner := newStubRunner()
	uploader := engine.NewUploader(opts, runner, newStubLauncher())

	state, err := uploader.Setup(context.Background(), testDisks(1024), "imported-vm")
	require.NoError(t, err)
	require.Equal(t, "imported-vm", state.VMName)

	vmchecks := runner.scriptCalls(engine.VMCheckScript)
	require.Len(t, vmchecks, 1)
	require.Equal(t, "imported-vm", vmchecks[0].params.OutputName)
}

func TestSetupSuppliedUUIDsPreserveOrder(t *testing.T) {
	opts := testOptions(t)
	opts.DiskUUIDs = []string{
		"123e4567-e89b-12d3-a456-426614174000",
		"223e4567-e89b-12d3-a456-426614174000",
	}

	uploader := engine.NewUploader(opts, newStubRunner(), newStubLauncher())

	state, err := uploader.Setup(context.Background(), testDisks(1024, 2048), "source-vm")
	require.NoError(t, err)
	require.Equal(t, opts.DiskUUIDs[0], state.Sessions[0].DiskUUID)
	require.Equal(t, opts.DiskUUIDs[1], state.Sessions[1].DiskUUID)
}

func TestSetupMissingResultFieldIsFatal(t *testing.T) {
	runner := newStubRunner()
	delete(runner.precheckResult, "rhv_cluster_uuid")

	uploader := engine.NewUploader(testOptions(t), runner, newStubLauncher())

	_, err := uploader.Setup(context.Background(), testDisks(1024), "source-vm")
	require.Error(t, err)
	require.True(t, engine.IsFailure(err, engine.FailureRemote))
	require.ErrorContains(t, err, "rhv_cluster_uuid")
}
