package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// The engine helper scripts. They wrap the remote engine's SDK; this tool
// only sequences their invocations, it does not speak the REST protocol.
const (
	PrecheckScript = "rhv-upload-precheck.py"
	VMCheckScript  = "rhv-upload-vmcheck.py"
	TransferScript = "rhv-upload-transfer.py"
	FinalizeScript = "rhv-upload-finalize.py"
	CreateVMScript = "rhv-upload-createvm.py"
	CancelScript   = "rhv-upload-cancel.py"
	PluginScript   = "rhv-upload-plugin.py"
)

// Runner invokes an engine helper script with a parameter document.
type Runner interface {
	// Run executes the helper and reports its exit status as an error.
	Run(ctx context.Context, script string, params *Params, args ...string) error

	// RunCapture executes the helper and parses its standard output as a
	// JSON object.
	RunCapture(ctx context.Context, script string, params *Params, args ...string) (map[string]any, error)
}

// ScriptRunner runs the Python helper scripts shipped with engine-upload.
type ScriptRunner struct {
	// Interpreter defaults to python3; tests substitute /bin/sh.
	Interpreter string
	ScriptDir   string
	WorkDir     string
}

func NewScriptRunner(scriptDir string, workDir string) *ScriptRunner {
	return &ScriptRunner{
		Interpreter: "python3",
		ScriptDir:   scriptDir,
		WorkDir:     workDir,
	}
}

func (r *ScriptRunner) Run(ctx context.Context, script string, params *Params, args ...string) error {
	_, err := r.invoke(ctx, script, params, false, args...)
	return err
}

func (r *ScriptRunner) RunCapture(ctx context.Context, script string, params *Params, args ...string) (map[string]any, error) {
	return r.invoke(ctx, script, params, true, args...)
}

func (r *ScriptRunner) invoke(ctx context.Context, script string, params *Params, capture bool, args ...string) (map[string]any, error) {
	base := strings.TrimSuffix(script, ".py")

	paramsFile := filepath.Join(r.WorkDir, base+"-params.json")
	err := params.WriteFile(paramsFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to write helper parameters: %w", err)
	}

	cmdArgs := append([]string{filepath.Join(r.ScriptDir, script), paramsFile}, args...)
	stdout, stderr, err := subprocess.RunCommandSplit(ctx, nil, nil, r.Interpreter, cmdArgs...)
	if err != nil {
		return nil, remoteErrorf("Helper %q failed: %w (%s)", script, err, strings.TrimSpace(stderr))
	}

	if !capture {
		return nil, nil
	}

	// Keep the captured result next to the parameter file. The run
	// directory doubles as the debugging record of the conversion.
	outFile := filepath.Join(r.WorkDir, base+"-out.json")
	err = os.WriteFile(outFile, []byte(stdout), 0o600)
	if err != nil {
		return nil, fmt.Errorf("Failed to write helper output: %w", err)
	}

	result := map[string]any{}
	err = json.Unmarshal([]byte(stdout), &result)
	if err != nil {
		return nil, remoteErrorf("Helper %q returned malformed JSON: %w", script, err)
	}

	return result, nil
}

// stringField reads a required string field from a helper result.
func stringField(script string, result map[string]any, key string) (string, error) {
	value, ok := result[key].(string)
	if !ok {
		return "", remoteErrorf("Helper %q result is missing field %q", script, key)
	}

	return value, nil
}

// boolField reads a required boolean field from a helper result.
func boolField(script string, result map[string]any, key string) (bool, error) {
	value, ok := result[key].(bool)
	if !ok {
		return false, remoteErrorf("Helper %q result is missing field %q", script, key)
	}

	return value, nil
}
