package importer

import (
	"fmt"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/loom-ml/loom/schema"
)

// OpSet is a set of operator names within one domain.
type OpSet map[string]struct{}

// Config configures importer behavior.
type Config struct {
	// ElideInitializedInputs treats a declared input that also has an
	// initial value as a constant rather than a true input. Ancient
	// exporters declared an input for anything mutable and paired it with
	// an initializer; modern tooling stopped doing that. We assume the
	// modern convention by default. With this false, inputs and
	// initializers must be disjoint or import fails.
	ElideInitializedInputs bool

	// FunctionExpansionAllowlists restricts which function-backed
	// operators are expanded, keyed by domain then operator name. A nil
	// map disables allowlisting entirely (everything not denylisted is
	// expanded). Function expansion has not always been supported, so the
	// default posture is allowlist-only to avoid surprising regressions.
	FunctionExpansionAllowlists map[string]OpSet

	// FunctionExpansionDenylists lists function-backed operators that must
	// never be expanded, keyed by domain then operator name.
	FunctionExpansionDenylists map[string]OpSet

	// Registry is the operator-schema oracle. Defaults to an empty
	// registry.
	Registry *schema.Registry

	// Inference is the shape-inference oracle run over synthetic models
	// during specialization. Defaults to schema.BasicInference over
	// Registry.
	Inference schema.Inference

	// Warnf receives the importer's non-fatal diagnostics. Defaults to
	// log.Printf.
	Warnf func(format string, args ...any)
}

// DefaultConfig returns the default importer configuration.
func DefaultConfig() *Config {
	return &Config{
		ElideInitializedInputs: true,
		FunctionExpansionAllowlists: map[string]OpSet{
			// Default domain (ONNX built-in ops).
			"": {
				"MeanVarianceNormalization": {},
			},
		},
		FunctionExpansionDenylists: map[string]OpSet{
			// Default domain (ONNX built-in ops).
			"": {
				// CastLike's second input is used only for its type, so
				// shape inference leaves it untyped and the function
				// lookup by input types fails.
				"CastLike": {},
				// Shape inference rejects the Loop op inside Range's
				// template body (inferred and existing shape differ in
				// rank).
				"Range": {},
			},
		},
		Warnf: log.Printf,
	}
}

// normalized fills in defaulted collaborators.
func (c *Config) normalized() *Config {
	out := *c
	if out.Registry == nil {
		out.Registry = schema.NewRegistry()
	}
	if out.Inference == nil {
		out.Inference = &schema.BasicInference{Registry: out.Registry}
	}
	if out.Warnf == nil {
		out.Warnf = log.Printf
	}
	return &out
}

func (c *Config) warnf(format string, args ...any) {
	if c.Warnf != nil {
		c.Warnf(format, args...)
	}
}

// expansionListsFile is the YAML shape of an expansion-list override file:
//
//	allowlist:
//	  "": [MeanVarianceNormalization]
//	denylist:
//	  "": [CastLike, Range]
type expansionListsFile struct {
	Allowlist map[string][]string `yaml:"allowlist"`
	Denylist  map[string][]string `yaml:"denylist"`
}

// LoadExpansionLists replaces the function-expansion allow/deny lists from
// YAML. A present-but-empty allowlist key disables expansion of everything;
// an absent allowlist key leaves the current allowlists untouched.
func (c *Config) LoadExpansionLists(data []byte) error {
	var file expansionListsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse expansion lists: %w", err)
	}
	if file.Allowlist != nil {
		c.FunctionExpansionAllowlists = toOpSets(file.Allowlist)
	}
	if file.Denylist != nil {
		c.FunctionExpansionDenylists = toOpSets(file.Denylist)
	}
	return nil
}

func toOpSets(in map[string][]string) map[string]OpSet {
	out := make(map[string]OpSet, len(in))
	for domain, names := range in {
		set := make(OpSet, len(names))
		for _, name := range names {
			set[name] = struct{}{}
		}
		out[domain] = set
	}
	return out
}
