package engine

import (
	"slices"

	"github.com/lxc/incus/v6/shared/util"
)

// UploadOptions holds the parsed, immutable options of one conversion run.
type UploadOptions struct {
	EngineURL     string
	PasswordFile  string
	StorageDomain string
	Format        string
	CAFile        string
	Cluster       string
	Direct        bool
	Insecure      bool
	DiskUUIDs     []string
	VMName        string
	WorkDir       string
	Verbose       bool
}

// Validate catches configuration problems before any remote state is touched.
func (o *UploadOptions) Validate() error {
	if o.EngineURL == "" {
		return configurationErrorf("An engine URL is required")
	}

	if o.PasswordFile == "" || !util.PathExists(o.PasswordFile) {
		return configurationErrorf("Password file %q does not exist", o.PasswordFile)
	}

	if o.StorageDomain == "" {
		return configurationErrorf("A target storage domain is required")
	}

	if !slices.Contains([]string{"raw", "qcow2"}, o.Format) {
		return configurationErrorf("Output format %q is invalid, must be one of raw,qcow2", o.Format)
	}

	if o.WorkDir == "" || !util.PathExists(o.WorkDir) {
		return configurationErrorf("Working directory %q does not exist", o.WorkDir)
	}

	return nil
}

// Params builds the invariant parameter set shared by every helper
// invocation of the run.
func (o *UploadOptions) Params() *Params {
	return &Params{
		Verbose:        o.Verbose,
		OutputConn:     o.EngineURL,
		OutputPassword: o.PasswordFile,
		OutputStorage:  o.StorageDomain,
		OutputFormat:   o.Format,
		RhvCAFile:      o.CAFile,
		RhvCluster:     o.Cluster,
		RhvDirect:      o.Direct,
		Insecure:       o.Insecure,
	}
}
