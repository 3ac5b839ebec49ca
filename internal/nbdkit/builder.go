package nbdkit

import (
	"fmt"
	"os/exec"
	"strconv"
)

// Threads passed to nbdkit. The upload plugin multiplexes writes to the
// remote imageio endpoint, so parallel requests matter for throughput.
const DefaultThreads = 8

type NbdkitBuilder struct {
	socket     string
	pidFile    string
	plugin     string
	paramsFile string
	threads    int
	verbose    bool
}

func NewNbdkitBuilder() *NbdkitBuilder {
	return &NbdkitBuilder{
		threads: DefaultThreads,
	}
}

func (b *NbdkitBuilder) Socket(socket string) *NbdkitBuilder {
	b.socket = socket
	return b
}

func (b *NbdkitBuilder) PidFile(pidFile string) *NbdkitBuilder {
	b.pidFile = pidFile
	return b
}

// Plugin sets the path of the Python upload plugin served by nbdkit.
func (b *NbdkitBuilder) Plugin(plugin string) *NbdkitBuilder {
	b.plugin = plugin
	return b
}

// ParamsFile sets the JSON parameter document handed to the upload plugin.
func (b *NbdkitBuilder) ParamsFile(paramsFile string) *NbdkitBuilder {
	b.paramsFile = paramsFile
	return b
}

func (b *NbdkitBuilder) Threads(threads int) *NbdkitBuilder {
	b.threads = threads
	return b
}

func (b *NbdkitBuilder) Verbose(verbose bool) *NbdkitBuilder {
	b.verbose = verbose
	return b
}

// Args returns the nbdkit command line the builder would run.
func (b *NbdkitBuilder) Args() []string {
	args := []string{
		"--foreground",
		"--exit-with-parent",
		"--unix", b.socket,
		"--pidfile", b.pidFile,
		"--threads", strconv.Itoa(b.threads),
	}

	if b.verbose {
		args = append(args, "--verbose")
	}

	args = append(args, "python", b.plugin, "params="+b.paramsFile)

	return args
}

func (b *NbdkitBuilder) Build() (*NbdkitServer, error) {
	if b.socket == "" || b.pidFile == "" {
		return nil, fmt.Errorf("Both a socket and a pidfile are required to run nbdkit")
	}

	if b.plugin == "" || b.paramsFile == "" {
		return nil, fmt.Errorf("The upload plugin and its parameter file are required to run nbdkit")
	}

	return &NbdkitServer{
		cmd:     exec.Command("nbdkit", b.Args()...),
		socket:  b.socket,
		pidFile: b.pidFile,
	}, nil
}
