// Package policy evaluates Rego rules against memory facts before they are
// stored. The decision point is data.engram.deny: a non-empty deny set means
// the fact is not remembered.
package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Gate holds a prepared query over the loaded policy modules.
type Gate struct {
	query rego.PreparedEvalQuery
}

// Load reads all .rego files from policyDir and prepares the deny query.
// An empty directory (or one with no .rego files) returns a nil Gate, which
// allows everything.
func Load(ctx context.Context, policyDir string) (*Gate, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules[file] = string(data)
	}

	return New(ctx, modules)
}

// New prepares a Gate from in-memory module sources keyed by file name.
func New(ctx context.Context, modules map[string]string) (*Gate, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query("data.engram.deny"))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query")
	}

	return &Gate{query: prepared}, nil
}

// Deny evaluates the policy against a fact text and returns the deny
// reasons. An empty result means the fact may be stored. A nil Gate never
// denies.
func (g *Gate) Deny(ctx context.Context, text string) ([]string, error) {
	if g == nil {
		return nil, nil
	}

	results, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{"text": text}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate policy")
	}

	var reasons []string
	for _, result := range results {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, v := range values {
				if s, ok := v.(string); ok {
					reasons = append(reasons, s)
				}
			}
		}
	}

	return reasons, nil
}
