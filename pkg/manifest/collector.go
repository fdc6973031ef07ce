// Package manifest collects runtime environment facts for attestation.
//
// Each runtime type has a stable key set: facts that cannot be determined
// are populated with the "unknown" sentinel rather than omitted, because
// downstream attestation consumers expect the same keys for every manifest
// of a given runtime type.
package manifest

import (
	"context"
	"fmt"
	"os"
)

// RuntimeType tags the execution environment an agent wakes up in.
type RuntimeType string

const (
	RuntimeKubernetes RuntimeType = "kubernetes"
	RuntimeServerless RuntimeType = "serverless"
	RuntimeEdge       RuntimeType = "edge"
)

// Unknown is the sentinel value for facts that could not be determined.
const Unknown = "unknown"

// Valid reports whether rt is a recognized runtime type.
func (rt RuntimeType) Valid() bool {
	switch rt {
	case RuntimeKubernetes, RuntimeServerless, RuntimeEdge:
		return true
	}
	return false
}

// Collector produces a runtime-type-appropriate manifest of environment facts.
type Collector interface {
	Collect(ctx context.Context, rt RuntimeType) (map[string]string, error)
}

// Detector is implemented by collectors that can determine the runtime type
// from the local environment.
type Detector interface {
	Detect() RuntimeType
}

// EnvCollector gathers facts from environment variables.
type EnvCollector struct {
	lookup func(string) (string, bool)
}

func NewEnvCollector() *EnvCollector {
	return &EnvCollector{lookup: os.LookupEnv}
}

// WithLookup overrides environment lookup for testing.
func (c *EnvCollector) WithLookup(lookup func(string) (string, bool)) *EnvCollector {
	c.lookup = lookup
	return c
}

// Detect determines the runtime type from environment markers. When nothing
// matches it returns RuntimeKubernetes, the documented default: ambiguity
// about the runtime must not keep an agent from waking up.
func (c *EnvCollector) Detect() RuntimeType {
	if _, ok := c.lookup("AWS_LAMBDA_FUNCTION_NAME"); ok {
		return RuntimeServerless
	}
	if _, ok := c.lookup("FUNCTION_TARGET"); ok {
		return RuntimeServerless
	}
	if _, ok := c.lookup("EDGE_DEVICE_ID"); ok {
		return RuntimeEdge
	}
	if _, ok := c.lookup("KUBERNETES_SERVICE_HOST"); ok {
		return RuntimeKubernetes
	}
	return RuntimeKubernetes
}

// Collect implements Collector. The returned manifest always carries the
// full key set for the runtime type, sentineled where facts are missing,
// and is guaranteed to conform to the runtime's manifest schema.
func (c *EnvCollector) Collect(ctx context.Context, rt RuntimeType) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("manifest: collect: %w", err)
	}

	var m map[string]string
	switch rt {
	case RuntimeKubernetes:
		m = map[string]string{
			"pod_name":  c.first("POD_NAME", "HOSTNAME"),
			"namespace": c.first("POD_NAMESPACE"),
			"node_name": c.first("NODE_NAME"),
		}
	case RuntimeServerless:
		m = map[string]string{
			"function_name": c.first("AWS_LAMBDA_FUNCTION_NAME", "FUNCTION_TARGET"),
			"region":        c.first("AWS_REGION", "FUNCTION_REGION"),
		}
	case RuntimeEdge:
		m = map[string]string{
			"device_id": c.first("EDGE_DEVICE_ID"),
			"location":  c.first("EDGE_LOCATION"),
		}
	default:
		return nil, fmt.Errorf("manifest: unrecognized runtime type %q", rt)
	}

	if err := Validate(rt, m); err != nil {
		return nil, err
	}
	return m, nil
}

// first returns the first non-empty value among the named variables, or the
// Unknown sentinel.
func (c *EnvCollector) first(names ...string) string {
	for _, name := range names {
		if v, ok := c.lookup(name); ok && v != "" {
			return v
		}
	}
	return Unknown
}
