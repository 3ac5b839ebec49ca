package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/virt-tools/engine-upload/internal/identity"
)

// Uploader drives the conversion phases against one remote engine.
type Uploader struct {
	opts     UploadOptions
	params   *Params
	runner   Runner
	launcher ExportLauncher
	guard    *Guard
}

func NewUploader(opts UploadOptions, runner Runner, launcher ExportLauncher) *Uploader {
	params := opts.Params()

	return &Uploader{
		opts:     opts,
		params:   params,
		runner:   runner,
		launcher: launcher,
		guard:    NewGuard(opts.WorkDir, runner, params),
	}
}

// Guard returns the uploader's cleanup guard. The caller registers it with
// its exit and signal handling; the guard stays disarmed until the first
// transfer is opened.
func (u *Uploader) Guard() *Guard {
	return u.guard
}

// Setup opens one transfer per disk on the remote engine and starts one
// export daemon per transfer. Any step failure is fatal; already-opened
// transfers are rolled back by the guard, not here.
func (u *Uploader) Setup(ctx context.Context, disks []DiskDescriptor, sourceName string) (*ConversionState, error) {
	err := u.opts.Validate()
	if err != nil {
		return nil, err
	}

	// Disk UUIDs resolve before the first remote call, so a count mismatch
	// or malformed UUID never leaves remote state behind.
	diskUUIDs, err := identity.ResolveDiskUUIDs(len(disks), u.opts.DiskUUIDs)
	if err != nil {
		return nil, &Error{Kind: FailureConfiguration, Err: err}
	}

	u.params.RhvDiskUUIDs = diskUUIDs

	result, err := u.runner.RunCapture(ctx, PrecheckScript, u.params)
	if err != nil {
		return nil, err
	}

	state := &ConversionState{Disks: disks}

	state.StorageDomainUUID, err = stringField(PrecheckScript, result, "rhv_storagedomain_uuid")
	if err != nil {
		return nil, err
	}

	state.ClusterUUID, err = stringField(PrecheckScript, result, "rhv_cluster_uuid")
	if err != nil {
		return nil, err
	}

	state.ClusterArch, err = stringField(PrecheckScript, result, "rhv_cluster_cpu_architecture")
	if err != nil {
		return nil, err
	}

	state.ClusterName, err = stringField(PrecheckScript, result, "rhv_cluster_name")
	if err != nil {
		return nil, err
	}

	state.VMName = u.opts.VMName
	if state.VMName == "" {
		state.VMName = sourceName
	}

	u.params.OutputName = state.VMName

	// The name-collision check runs before any transfer is opened. Once a
	// transfer exists, abort requires remote cleanup, so the cheap check
	// must come first.
	err = u.runner.Run(ctx, VMCheckScript, u.params)
	if err != nil {
		return nil, err
	}

	for i, disk := range disks {
		session, err := u.openTransfer(ctx, i, disk, diskUUIDs[i])
		if err != nil {
			return nil, err
		}

		state.Sessions = append(state.Sessions, session)
	}

	slog.Info("Setup complete", slog.String("vm", state.VMName), slog.Int("disks", len(disks)))

	return state, nil
}

func (u *Uploader) openTransfer(ctx context.Context, ordinal int, disk DiskDescriptor, diskUUID string) (*TransferSession, error) {
	u.params.DiskName = fmt.Sprintf("%s-disk%d", u.params.OutputName, ordinal+1)
	u.params.DiskFormat = u.opts.Format
	u.params.DiskSize = disk.Size
	u.params.RhvDiskUUID = diskUUID

	result, err := u.runner.RunCapture(ctx, TransferScript, u.params)
	if err != nil {
		return nil, err
	}

	destinationURL, err := stringField(TransferScript, result, "destination_url")
	if err != nil {
		return nil, err
	}

	transferID, err := stringField(TransferScript, result, "transfer_id")
	if err != nil {
		return nil, err
	}

	isOvirtHost, err := boolField(TransferScript, result, "is_ovirt_host")
	if err != nil {
		return nil, err
	}

	// The transfer now exists remotely. Arm the guard and record the
	// transfer before anything else can fail, so it is rolled back even if
	// the daemon below never starts.
	u.guard.Arm()
	u.guard.RegisterTransfer(transferID, diskUUID)

	slog.Info("Transfer opened",
		slog.Int("disk", ordinal),
		slog.String("transferID", transferID),
		slog.String("diskUUID", diskUUID))

	daemon, err := u.launcher.Launch(ctx, ExportConfig{
		Ordinal:        ordinal,
		Size:           disk.Size,
		DestinationURL: destinationURL,
		IsOvirtHost:    isOvirtHost,
	})
	if err != nil {
		return nil, processErrorf("Failed to start export daemon for disk %d: %w", ordinal, err)
	}

	u.guard.RegisterDaemon(daemon)

	return &TransferSession{
		DiskUUID:       diskUUID,
		TransferID:     transferID,
		DestinationURL: destinationURL,
		Daemon:         daemon,
	}, nil
}
