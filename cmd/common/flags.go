package common

import (
	"github.com/spf13/cobra"
)

// Flags used by all applications
type CmdGlobalFlags struct {
	FlagVersion bool
	FlagHelp    bool

	FlagLogFile    string
	FlagLogDebug   bool
	FlagLogVerbose bool
}

// Flags used when connecting to a remote engine
type CmdEngineFlags struct {
	EngineURL     string
	PasswordFile  string
	StorageDomain string
	CAFile        string
	Cluster       string
	Direct        bool
	Insecure      bool
	DiskUUIDs     []string
}

// Flags describing the VM to register on the remote engine
type CmdOutputFlags struct {
	Name      string
	Format    string
	WorkDir   string
	ScriptDir string
	Arch      string
	CPUs      int
	MemoryMB  int64
	OSType    string
}

func (c *CmdGlobalFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.FlagVersion, "version", false, "Print version number")
	cmd.Flags().BoolVarP(&c.FlagHelp, "help", "h", false, "Print help")
	cmd.Flags().StringVar(&c.FlagLogFile, "logfile", "", "Path to the log file")
	cmd.Flags().BoolVarP(&c.FlagLogDebug, "debug", "d", false, "Show all debug messages")
	cmd.Flags().BoolVarP(&c.FlagLogVerbose, "verbose", "v", false, "Show all information messages")
}

func (c *CmdEngineFlags) AddFlags(cmd *cobra.Command) {
	// Not marked required: they may come from the config file instead and
	// are validated together with the rest of the upload options.
	cmd.Flags().StringVar(&c.EngineURL, "engine-url", "", "Remote engine API URL")
	cmd.Flags().StringVar(&c.PasswordFile, "password-file", "", "File containing the engine password")
	cmd.Flags().StringVar(&c.StorageDomain, "storage-domain", "", "Target storage domain name")
	cmd.Flags().StringVar(&c.CAFile, "ca-file", "", "CA bundle used to verify the engine certificate")
	cmd.Flags().StringVar(&c.Cluster, "cluster", "", "Target cluster name")
	cmd.Flags().BoolVar(&c.Direct, "direct", false, "Transfer directly to the storage host instead of via the engine proxy")
	cmd.Flags().BoolVar(&c.Insecure, "insecure", false, "Ignore TLS certificate errors when connecting to the engine")
	cmd.Flags().StringSliceVar(&c.DiskUUIDs, "disk-uuid", nil, "Disk UUID to use instead of a generated one (repeat per disk, in disk order)")
}

func (c *CmdOutputFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Name, "name", "", "Name of the VM to register (defaults to the first disk image's base name)")
	cmd.Flags().StringVar(&c.Format, "format", "raw", "Output disk format (raw or qcow2)")
	cmd.Flags().StringVar(&c.WorkDir, "workdir", "", "Working directory for sockets and helper parameter files (default /var/cache/engine-upload)")
	cmd.Flags().StringVar(&c.ScriptDir, "script-dir", "", "Directory containing the engine helper scripts")
	cmd.Flags().StringVar(&c.Arch, "arch", "x86_64", "Architecture of the converted guest")
	cmd.Flags().IntVar(&c.CPUs, "cpus", 2, "Number of virtual CPUs of the registered VM")
	cmd.Flags().Int64Var(&c.MemoryMB, "memory", 2048, "Memory of the registered VM in MiB")
	cmd.Flags().StringVar(&c.OSType, "os-type", "Unassigned", "Guest operating system identifier embedded in the descriptor")
}
