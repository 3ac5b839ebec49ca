package engine

import (
	"encoding/json"
	"os"
)

// Params is the JSON parameter document handed to every engine helper
// script. It is cumulative: later phases inherit and extend the fields set
// by earlier phases instead of rebuilding the document.
type Params struct {
	Verbose bool `json:"verbose"`

	// Connection and target, set once from the upload options.
	OutputConn     string `json:"output_conn"`
	OutputPassword string `json:"output_password"`
	OutputStorage  string `json:"output_storage"`
	OutputFormat   string `json:"output_format"`
	RhvCAFile      string `json:"rhv_cafile,omitempty"`
	RhvCluster     string `json:"rhv_cluster,omitempty"`
	RhvDirect      bool   `json:"rhv_direct"`
	Insecure       bool   `json:"insecure"`

	// Set during Setup.
	OutputName   string   `json:"output_name,omitempty"`
	RhvDiskUUIDs []string `json:"rhv_disk_uuids,omitempty"`

	// Per-disk fields, rewritten for each transfer the setup phase opens.
	DiskName    string `json:"disk_name,omitempty"`
	DiskFormat  string `json:"disk_format,omitempty"`
	DiskSize    int64  `json:"disk_size,omitempty"`
	RhvDiskUUID string `json:"rhv_disk_uuid,omitempty"`

	// Set for finalize and cancel invocations only.
	TransferIDs []string `json:"transfer_ids,omitempty"`
	DiskUUIDs   []string `json:"disk_uuids,omitempty"`
}

// WriteFile serializes the parameter set for consumption by a helper script.
func (p *Params) WriteFile(path string) error {
	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, content, 0o600)
}
