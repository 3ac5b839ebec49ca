package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/virt-tools/engine-upload/cmd/common"
	"github.com/virt-tools/engine-upload/cmd/engine-upload/config"
	"github.com/virt-tools/engine-upload/internal/engine"
	"github.com/virt-tools/engine-upload/internal/logger"
	"github.com/virt-tools/engine-upload/internal/nbdcopy"
	"github.com/virt-tools/engine-upload/internal/ovf"
	"github.com/virt-tools/engine-upload/internal/util"
	"github.com/virt-tools/engine-upload/internal/version"
)

type appFlags struct {
	common.CmdGlobalFlags
	common.CmdEngineFlags
	common.CmdOutputFlags

	configFile string
}

func main() {
	appCmd := appFlags{}
	app := appCmd.Command()
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	// Version handling
	app.SetVersionTemplate("{{.Version}}\n")
	app.Version = version.Version

	// Run the main command and handle errors
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func (c *appFlags) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "engine-upload <disk image>..."
	cmd.Short = "Upload converted VM disks to a remote engine"
	cmd.Long = `Description:
  Upload converted VM disks to a remote engine

  This tool takes the disk images produced by a VM conversion, uploads each
  of them through a per-disk transfer session on the remote engine, and once
  every upload succeeded registers a new VM using the uploaded disks. If
  anything fails along the way, the transfers and disks opened so far are
  rolled back on the engine.
`

	cmd.RunE = c.Run
	cmd.Args = cobra.MinimumNArgs(1)

	c.CmdGlobalFlags.AddFlags(cmd)
	c.CmdEngineFlags.AddFlags(cmd)
	c.CmdOutputFlags.AddFlags(cmd)
	cmd.Flags().StringVar(&c.configFile, "config", "", "YAML file with engine connection defaults")

	return cmd
}

func (c *appFlags) Run(cmd *cobra.Command, args []string) error {
	ctx := context.TODO()

	_, err := logger.InitLogger(c.FlagLogFile, c.FlagLogVerbose, c.FlagLogDebug)
	if err != nil {
		return err
	}

	if c.configFile != "" {
		cfg, err := config.LoadConfig(c.configFile)
		if err != nil {
			return fmt.Errorf("Failed to load config file %q: %w", c.configFile, err)
		}

		c.applyConfig(cmd, cfg)
	}

	scriptDir := c.ScriptDir
	if scriptDir == "" {
		scriptDir = util.SharePath()
	}

	workDir := c.WorkDir
	if workDir == "" {
		workDir = util.CachePath()
	}

	err = os.MkdirAll(workDir, 0o700)
	if err != nil {
		return fmt.Errorf("Failed to create working directory %q: %w", workDir, err)
	}

	plugin := filepath.Join(scriptDir, engine.PluginScript)

	err = engine.VerifyEnvironment(ctx, plugin)
	if err != nil {
		return err
	}

	disks := make([]engine.DiskDescriptor, 0, len(args))
	for i, path := range args {
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("Failed to read disk image %q: %w", path, err)
		}

		disks = append(disks, engine.DiskDescriptor{
			Index: i,
			Size:  fi.Size(),
			Path:  path,
		})
	}

	sourceName := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))

	opts := engine.UploadOptions{
		EngineURL:     c.EngineURL,
		PasswordFile:  c.PasswordFile,
		StorageDomain: c.StorageDomain,
		Format:        c.Format,
		CAFile:        c.CAFile,
		Cluster:       c.Cluster,
		Direct:        c.Direct,
		Insecure:      c.Insecure,
		DiskUUIDs:     c.DiskUUIDs,
		VMName:        c.Name,
		WorkDir:       workDir,
		Verbose:       c.FlagLogVerbose || c.FlagLogDebug,
	}

	runner := engine.NewScriptRunner(scriptDir, workDir)
	launcher := &engine.NbdkitLauncher{
		WorkDir:  workDir,
		Plugin:   plugin,
		CAFile:   c.CAFile,
		Insecure: c.Insecure,
		Verbose:  c.FlagLogDebug,
	}

	uploader := engine.NewUploader(opts, runner, launcher)
	guard := uploader.Guard()

	// The guard runs exactly once, whether the conversion returns normally,
	// fails, or is interrupted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		slog.Warn("Received interrupt signal, cleaning up...")
		guard.Run()
		os.Exit(1)
	}()

	defer guard.Run()

	state, err := uploader.Setup(ctx, disks, sourceName)
	if err != nil {
		return err
	}

	for i, session := range state.Sessions {
		err := nbdcopy.Run(ctx, disks[i].Path, session.Daemon.URI(), disks[i].Size, func(status string, isImportant bool) {
			if isImportant {
				slog.Info(status) //nolint:sloglint
			}
		})
		if err != nil {
			return fmt.Errorf("Failed to upload disk %d: %w", i, err)
		}
	}

	guest := engine.GuestInfo{
		Arch:     c.Arch,
		CPUs:     c.CPUs,
		MemoryMB: c.MemoryMB,
		OSType:   c.OSType,
	}

	result, err := uploader.Finalize(ctx, state, guest, ovf.NewBuilder())
	if err != nil {
		return err
	}

	// The success marker gates the guard's rollback: it exists only once
	// the VM is registered, so the guard leaves the uploaded disks alone.
	err = os.WriteFile(filepath.Join(workDir, engine.SuccessMarker), nil, 0o644)
	if err != nil {
		return fmt.Errorf("Failed to write success marker: %w", err)
	}

	fmt.Printf("VM %q registered with UUID %s\n", state.VMName, result.VMUUID)

	return nil
}

// applyConfig fills engine flags from the config file, unless the flag was
// set explicitly on the command line.
func (c *appFlags) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("engine-url") && cfg.EngineURL != "" {
		c.EngineURL = cfg.EngineURL
	}

	if !cmd.Flags().Changed("password-file") && cfg.PasswordFile != "" {
		c.PasswordFile = cfg.PasswordFile
	}

	if !cmd.Flags().Changed("storage-domain") && cfg.StorageDomain != "" {
		c.StorageDomain = cfg.StorageDomain
	}

	if !cmd.Flags().Changed("ca-file") && cfg.CAFile != "" {
		c.CAFile = cfg.CAFile
	}

	if !cmd.Flags().Changed("cluster") && cfg.Cluster != "" {
		c.Cluster = cfg.Cluster
	}

	if !cmd.Flags().Changed("direct") {
		c.Direct = c.Direct || cfg.Direct
	}

	if !cmd.Flags().Changed("insecure") {
		c.Insecure = c.Insecure || cfg.Insecure
	}
}
