// Package provisioner drives Terraform against synthesized range plans.
// It owns the plan directory lifecycle: synthesize, init, apply or
// destroy, capture state, clean up.
package provisioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/hashicorp/terraform-exec/tfexec"

	"github.com/OpenLabsHQ/openlabs-api/ranges"
)

var (
	// ErrSynthesisFailed wraps plan generation failures.
	ErrSynthesisFailed = errors.New("plan synthesis failed")
	// ErrProvisionerFailed wraps terraform subprocess failures.
	ErrProvisionerFailed = errors.New("terraform execution failed")
)

// Driver runs terraform for range deployments. Safe for concurrent use;
// each operation works in its own plan directory.
type Driver struct {
	// Workdir is the root under which plan directories are created.
	Workdir string
	// Binary is the terraform executable path.
	Binary string

	Log logr.Logger
}

// ApplyResult carries everything the worker persists after a deploy.
type ApplyResult struct {
	// Outputs maps terraform output names to their string values.
	Outputs map[string]string
	// State is the opaque terraform state file captured after apply.
	State json.RawMessage
}

// Deploy synthesizes the plan, runs terraform init and apply with the
// range credentials in the environment, and captures outputs plus the
// raw state file. The plan directory is removed afterwards; on apply
// failure it is kept for inspection and the error says where.
func (d *Driver) Deploy(ctx context.Context, r *ranges.Range) (*ApplyResult, error) {
	planDir, err := r.Synthesize(d.Workdir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	tf, err := d.terraform(planDir, r)
	if err != nil {
		return nil, err
	}

	d.Log.Info("applying range plan", "stack", r.StackName(), "dir", planDir)
	if err := tf.Init(ctx); err != nil {
		return nil, fmt.Errorf("%w: init in %s: %v", ErrProvisionerFailed, planDir, err)
	}
	if err := tf.Apply(ctx); err != nil {
		return nil, fmt.Errorf("%w: apply in %s: %v", ErrProvisionerFailed, planDir, err)
	}

	outputs, err := d.readOutputs(ctx, tf)
	if err != nil {
		return nil, err
	}
	state, err := os.ReadFile(filepath.Join(planDir, r.StateFilename()))
	if err != nil {
		return nil, fmt.Errorf("reading state after apply: %w", err)
	}

	d.cleanup(planDir)
	return &ApplyResult{Outputs: outputs, State: state}, nil
}

// Destroy re-synthesizes the plan, rehydrates the captured state file
// into the plan directory, and runs terraform destroy. The plan
// directory is removed on success.
func (d *Driver) Destroy(ctx context.Context, r *ranges.Range, state json.RawMessage) error {
	planDir, err := r.Synthesize(d.Workdir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if err := os.WriteFile(filepath.Join(planDir, r.StateFilename()), state, 0o600); err != nil {
		return fmt.Errorf("rehydrating state: %w", err)
	}

	tf, err := d.terraform(planDir, r)
	if err != nil {
		return err
	}

	d.Log.Info("destroying range", "stack", r.StackName(), "dir", planDir)
	if err := tf.Init(ctx); err != nil {
		return fmt.Errorf("%w: init in %s: %v", ErrProvisionerFailed, planDir, err)
	}
	if err := tf.Destroy(ctx); err != nil {
		return fmt.Errorf("%w: destroy in %s: %v", ErrProvisionerFailed, planDir, err)
	}

	d.cleanup(planDir)
	return nil
}

func (d *Driver) terraform(planDir string, r *ranges.Range) (*tfexec.Terraform, error) {
	tf, err := tfexec.NewTerraform(planDir, d.Binary)
	if err != nil {
		return nil, fmt.Errorf("initializing terraform driver: %w", err)
	}

	env := map[string]string{}
	for _, kv := range os.Environ() {
		if name, value, found := splitEnv(kv); found {
			env[name] = value
		}
	}
	env = tfexec.CleanEnv(env)
	for name, value := range r.CredentialEnv() {
		env[name] = value
	}
	if err := tf.SetEnv(env); err != nil {
		return nil, fmt.Errorf("setting terraform environment: %w", err)
	}
	return tf, nil
}

func (d *Driver) readOutputs(ctx context.Context, tf *tfexec.Terraform) (map[string]string, error) {
	meta, err := tf.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading outputs: %v", ErrProvisionerFailed, err)
	}
	outputs := make(map[string]string, len(meta))
	for name, out := range meta {
		var value string
		if err := json.Unmarshal(out.Value, &value); err != nil {
			// Non-string outputs are kept raw.
			value = string(out.Value)
		}
		outputs[name] = value
	}
	return outputs, nil
}

func (d *Driver) cleanup(planDir string) {
	if err := os.RemoveAll(planDir); err != nil {
		d.Log.Error(err, "removing plan directory", "dir", planDir)
	}
}

func splitEnv(kv string) (name, value string, found bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
