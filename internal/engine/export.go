package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/virt-tools/engine-upload/internal/nbdkit"
	"github.com/virt-tools/engine-upload/internal/util"
)

// ExportConfig describes the export daemon of one disk.
type ExportConfig struct {
	Ordinal        int
	Size           int64
	DestinationURL string
	IsOvirtHost    bool
}

// ExportDaemon is a running process exposing one disk as a network block
// device on a local socket, forwarding writes to the transfer's destination
// endpoint.
type ExportDaemon interface {
	Socket() string
	URI() string

	// Terminate sends a graceful termination signal without waiting.
	Terminate() error

	// Stop terminates the daemon and blocks until it has exited.
	Stop(ctx context.Context) error
}

// ExportLauncher starts export daemons. Launch blocks until the daemon
// serves its socket, not until any data transfer completes.
type ExportLauncher interface {
	Launch(ctx context.Context, cfg ExportConfig) (ExportDaemon, error)
}

// NbdkitLauncher launches nbdkit with the upload plugin.
type NbdkitLauncher struct {
	WorkDir  string
	Plugin   string
	CAFile   string
	Insecure bool
	Verbose  bool
}

// pluginParams is the JSON document read by the upload plugin itself. Unlike
// the helper parameter set it is per disk, pointing the plugin at the
// transfer's destination endpoint.
type pluginParams struct {
	DestinationURL string `json:"destination_url"`
	DiskSize       int64  `json:"disk_size"`
	RhvCAFile      string `json:"rhv_cafile,omitempty"`
	Insecure       bool   `json:"insecure"`
	IsOvirtHost    bool   `json:"is_ovirt_host"`
	Verbose        bool   `json:"verbose"`
}

func (l *NbdkitLauncher) Launch(ctx context.Context, cfg ExportConfig) (ExportDaemon, error) {
	params := pluginParams{
		DestinationURL: cfg.DestinationURL,
		DiskSize:       cfg.Size,
		RhvCAFile:      l.CAFile,
		Insecure:       l.Insecure,
		IsOvirtHost:    cfg.IsOvirtHost,
		Verbose:        l.Verbose,
	}

	content, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return nil, err
	}

	paramsFile := filepath.Join(l.WorkDir, fmt.Sprintf("nbdkit-%d-params.json", cfg.Ordinal))
	err = os.WriteFile(paramsFile, content, 0o600)
	if err != nil {
		return nil, fmt.Errorf("Failed to write plugin parameters: %w", err)
	}

	socket := filepath.Join(l.WorkDir, fmt.Sprintf("nbdkit-%d.sock", cfg.Ordinal))
	if util.IsUnixSocket(socket) {
		// Stale socket from an aborted earlier run.
		_ = os.Remove(socket)
	}

	server, err := nbdkit.NewNbdkitBuilder().
		Socket(socket).
		PidFile(filepath.Join(l.WorkDir, fmt.Sprintf("nbdkit-%d.pid", cfg.Ordinal))).
		Plugin(l.Plugin).
		ParamsFile(paramsFile).
		Verbose(l.Verbose).
		Build()
	if err != nil {
		return nil, err
	}

	err = server.Start(ctx)
	if err != nil {
		return nil, err
	}

	return server, nil
}
