package engine

// DiskDescriptor is one source disk handed over by the disk-source
// collaborator. Ordinal order is the contract correlating sizes, UUIDs and
// export sockets throughout the run.
type DiskDescriptor struct {
	Index int

	// Size is the declared virtual size in bytes.
	Size int64

	// Path is the local byte source consumed by the copy collaborator.
	Path string
}

// TransferSession is the remote upload context of one disk.
type TransferSession struct {
	DiskUUID       string
	TransferID     string
	DestinationURL string

	// Daemon is the export daemon bound to the transfer's destination
	// endpoint. Non-nil while the session is active; finalize and cancel
	// both require every session to have been deactivated first.
	Daemon ExportDaemon
}

func (s *TransferSession) Active() bool {
	return s.Daemon != nil
}

// ConversionState is the aggregate carried from Setup to Finalize. The
// remote identifiers are resolved once during precheck and immutable
// thereafter.
type ConversionState struct {
	Sessions []*TransferSession
	Disks    []DiskDescriptor

	StorageDomainUUID string
	ClusterUUID       string
	ClusterArch       string
	ClusterName       string
	VMName            string
}
