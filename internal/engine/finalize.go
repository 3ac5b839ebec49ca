package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/virt-tools/engine-upload/internal/identity"
	"github.com/virt-tools/engine-upload/internal/util"
)

// GuestInfo is the converted guest's introspected metadata, supplied by the
// conversion collaborator and embedded in the VM descriptor.
type GuestInfo struct {
	Arch     string
	CPUs     int
	MemoryMB int64
	OSType   string
	Firmware string
}

// DescriptorDisk describes one uploaded disk for the descriptor document.
type DescriptorDisk struct {
	Size       int64
	Format     string
	Sparse     bool
	DiskUUID   string
	VolumeUUID string
}

// DescriptorInfo is everything the descriptor-generation collaborator needs
// to produce the VM descriptor document for the target engine.
type DescriptorInfo struct {
	Name              string
	Guest             GuestInfo
	StorageDomainUUID string
	VMUUID            string
	Disks             []DescriptorDisk

	// Platform marks the target platform family the descriptor is for.
	Platform string
}

// DescriptorBuilder generates the VM descriptor document. The core only
// sequences the call; the document's content is the collaborator's business.
type DescriptorBuilder interface {
	Build(info *DescriptorInfo) ([]byte, error)
}

// FinalizeResult carries the identifiers generated while registering the VM.
type FinalizeResult struct {
	VMUUID      string
	VolumeUUIDs []string
}

// Finalize commits all open transfers and registers the new VM. It must only
// be called after the copy collaborator reports every disk copied.
func (u *Uploader) Finalize(ctx context.Context, state *ConversionState, guest GuestInfo, builder DescriptorBuilder) (*FinalizeResult, error) {
	err := util.SameArchitecture(state.ClusterArch, guest.Arch)
	if err != nil {
		return nil, configurationErrorf("Remote cluster architecture %q does not match guest architecture %q", state.ClusterArch, guest.Arch)
	}

	// All export daemons must be gone before the remote finalize call.
	// Data-plane traffic during finalize corrupts the remote transfer state.
	daemons := u.guard.TakeDaemons()
	for i, daemon := range daemons {
		err := daemon.Stop(ctx)
		if err != nil {
			// Hand the daemon that refused and the untouched remainder back,
			// so unwinding still terminates them before any rollback.
			for _, d := range daemons[i:] {
				u.guard.RegisterDaemon(d)
			}

			return nil, processErrorf("Failed to stop export daemon: %w", err)
		}
	}

	transferIDs := make([]string, 0, len(state.Sessions))
	diskUUIDs := make([]string, 0, len(state.Sessions))
	for _, session := range state.Sessions {
		session.Daemon = nil
		transferIDs = append(transferIDs, session.TransferID)
		diskUUIDs = append(diskUUIDs, session.DiskUUID)
	}

	u.params.TransferIDs = transferIDs
	u.params.DiskUUIDs = diskUUIDs

	err = u.runner.Run(ctx, FinalizeScript, u.params)
	if err != nil {
		return nil, err
	}

	// Volume and VM identifiers are never caller-controlled.
	result := &FinalizeResult{
		VMUUID: identity.NewUUID(),
	}

	info := &DescriptorInfo{
		Name:              state.VMName,
		Guest:             guest,
		StorageDomainUUID: state.StorageDomainUUID,
		VMUUID:            result.VMUUID,
		Platform:          "rhv",
	}

	for i, session := range state.Sessions {
		volumeUUID := identity.NewUUID()
		result.VolumeUUIDs = append(result.VolumeUUIDs, volumeUUID)

		info.Disks = append(info.Disks, DescriptorDisk{
			Size:       state.Disks[i].Size,
			Format:     u.opts.Format,
			Sparse:     u.opts.Format == "qcow2",
			DiskUUID:   session.DiskUUID,
			VolumeUUID: volumeUUID,
		})
	}

	descriptor, err := builder.Build(info)
	if err != nil {
		return nil, configurationErrorf("Failed to build VM descriptor: %w", err)
	}

	descriptorPath := filepath.Join(u.opts.WorkDir, "vm.ovf")
	err = os.WriteFile(descriptorPath, descriptor, 0o600)
	if err != nil {
		return nil, processErrorf("Failed to write VM descriptor: %w", err)
	}

	err = u.runner.Run(ctx, CreateVMScript, u.params, state.ClusterUUID, descriptorPath)
	if err != nil {
		return nil, err
	}

	slog.Info("VM registered on remote engine",
		slog.String("vm", state.VMName),
		slog.String("vmUUID", result.VMUUID))

	return result, nil
}
