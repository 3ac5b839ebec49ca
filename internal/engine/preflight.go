package engine

import (
	"context"
	"os/exec"
	"strings"

	"github.com/lxc/incus/v6/shared/subprocess"
	"github.com/lxc/incus/v6/shared/util"
	"golang.org/x/mod/semver"
)

// MinNbdkitVersion is the oldest nbdkit able to serve the upload plugin with
// parallel threads, which the remote imageio endpoint needs for acceptable
// throughput.
const MinNbdkitVersion = "1.22.0"

// VerifyEnvironment checks that the external runtime the conversion depends
// on is installed and configured, before any remote state is touched. Every
// failure names the manual remedy; none are retried.
func VerifyEnvironment(ctx context.Context, plugin string) error {
	python, err := exec.LookPath("python3")
	if err != nil {
		return environmentErrorf("Python 3 interpreter not found, please install python3")
	}

	_, stderr, err := subprocess.RunCommandSplit(ctx, nil, nil, python, "-c", "import ovirtsdk4")
	if err != nil {
		return environmentErrorf("The Python module ovirtsdk4 could not be loaded, please install the python3-ovirt-engine-sdk4 package (%s)", strings.TrimSpace(stderr))
	}

	_, err = exec.LookPath("nbdkit")
	if err != nil {
		return environmentErrorf("nbdkit not found, please install nbdkit >= %s", MinNbdkitVersion)
	}

	out, err := subprocess.RunCommand("nbdkit", "--version")
	if err != nil {
		return environmentErrorf("Failed to read the nbdkit version: %v", err)
	}

	version, err := ParseNbdkitVersion(out)
	if err != nil {
		return environmentErrorf("Failed to parse the nbdkit version from %q: %v", strings.TrimSpace(out), err)
	}

	if !NbdkitVersionSupported(version) {
		return environmentErrorf("nbdkit %s is too old, please upgrade to nbdkit >= %s", version, MinNbdkitVersion)
	}

	if selinuxEnabled() {
		config, err := subprocess.RunCommand("nbdkit", "--dump-config")
		if err != nil {
			return environmentErrorf("Failed to dump the nbdkit configuration: %v", err)
		}

		if !strings.Contains(config, "selinux=yes") {
			return environmentErrorf("SELinux is enabled on this host but nbdkit was built without SELinux socket labelling, please install an nbdkit built with libselinux support")
		}
	}

	_, stderr, err = subprocess.RunCommandSplit(ctx, nil, nil, "nbdkit", "python", plugin, "--dump-plugin")
	if err != nil {
		return environmentErrorf("nbdkit cannot load the upload plugin %q, please check the nbdkit-python-plugin installation (%s)", plugin, strings.TrimSpace(stderr))
	}

	return nil
}

// ParseNbdkitVersion extracts the version number from `nbdkit --version`
// output, e.g. "nbdkit 1.30.8 (...)".
func ParseNbdkitVersion(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 || fields[0] != "nbdkit" {
		return "", environmentErrorf("Unexpected version output %q", strings.TrimSpace(output))
	}

	return fields[1], nil
}

// NbdkitVersionSupported compares a dotted version against MinNbdkitVersion.
func NbdkitVersionSupported(version string) bool {
	return semver.Compare("v"+version, "v"+MinNbdkitVersion) >= 0
}

func selinuxEnabled() bool {
	return util.PathExists("/sys/fs/selinux/enforce")
}
