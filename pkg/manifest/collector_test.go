package manifest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noetic-systems/noesis/pkg/manifest"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want manifest.RuntimeType
	}{
		{
			name: "kubernetes service host",
			env:  map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"},
			want: manifest.RuntimeKubernetes,
		},
		{
			name: "lambda",
			env:  map[string]string{"AWS_LAMBDA_FUNCTION_NAME": "wake-handler"},
			want: manifest.RuntimeServerless,
		},
		{
			name: "cloud function",
			env:  map[string]string{"FUNCTION_TARGET": "Wake"},
			want: manifest.RuntimeServerless,
		},
		{
			name: "edge device",
			env:  map[string]string{"EDGE_DEVICE_ID": "edge-042"},
			want: manifest.RuntimeEdge,
		},
		{
			name: "nothing detectable falls back to kubernetes",
			env:  map[string]string{},
			want: manifest.RuntimeKubernetes,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := manifest.NewEnvCollector().WithLookup(envFrom(tc.env))
			assert.Equal(t, tc.want, c.Detect())
		})
	}
}

func TestCollect_Kubernetes(t *testing.T) {
	c := manifest.NewEnvCollector().WithLookup(envFrom(map[string]string{
		"POD_NAME":      "agent-7f9c",
		"POD_NAMESPACE": "agents",
		"NODE_NAME":     "node-3",
	}))

	m, err := c.Collect(context.Background(), manifest.RuntimeKubernetes)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"pod_name":  "agent-7f9c",
		"namespace": "agents",
		"node_name": "node-3",
	}, m)
}

func TestCollect_KubernetesSentinels(t *testing.T) {
	// Only the hostname is known; the stable key set must still be complete.
	c := manifest.NewEnvCollector().WithLookup(envFrom(map[string]string{
		"HOSTNAME": "agent-7f9c",
	}))

	m, err := c.Collect(context.Background(), manifest.RuntimeKubernetes)
	require.NoError(t, err)
	assert.Equal(t, "agent-7f9c", m["pod_name"])
	assert.Equal(t, manifest.Unknown, m["namespace"])
	assert.Equal(t, manifest.Unknown, m["node_name"])
}

func TestCollect_Serverless(t *testing.T) {
	c := manifest.NewEnvCollector().WithLookup(envFrom(map[string]string{
		"AWS_LAMBDA_FUNCTION_NAME": "wake-handler",
		"AWS_REGION":               "eu-west-1",
	}))

	m, err := c.Collect(context.Background(), manifest.RuntimeServerless)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"function_name": "wake-handler",
		"region":        "eu-west-1",
	}, m)
}

func TestCollect_Edge(t *testing.T) {
	c := manifest.NewEnvCollector().WithLookup(envFrom(map[string]string{
		"EDGE_DEVICE_ID": "edge-042",
	}))

	m, err := c.Collect(context.Background(), manifest.RuntimeEdge)
	require.NoError(t, err)
	assert.Equal(t, "edge-042", m["device_id"])
	assert.Equal(t, manifest.Unknown, m["location"])
}

func TestCollect_UnrecognizedRuntime(t *testing.T) {
	c := manifest.NewEnvCollector().WithLookup(envFrom(nil))

	_, err := c.Collect(context.Background(), manifest.RuntimeType("mainframe"))
	assert.Error(t, err)
}

func TestValidate_RejectsMissingAndExtraKeys(t *testing.T) {
	err := manifest.Validate(manifest.RuntimeKubernetes, map[string]string{
		"pod_name": "p",
	})
	assert.Error(t, err, "missing keys must fail validation")

	err = manifest.Validate(manifest.RuntimeEdge, map[string]string{
		"device_id": "d",
		"location":  "l",
		"extra":     "nope",
	})
	assert.Error(t, err, "extra keys must fail validation")

	err = manifest.Validate(manifest.RuntimeServerless, map[string]string{
		"function_name": manifest.Unknown,
		"region":        manifest.Unknown,
	})
	assert.NoError(t, err, "sentinel values are legal")
}

func TestRuntimeTypeValid(t *testing.T) {
	assert.True(t, manifest.RuntimeKubernetes.Valid())
	assert.True(t, manifest.RuntimeServerless.Valid())
	assert.True(t, manifest.RuntimeEdge.Valid())
	assert.False(t, manifest.RuntimeType("vax").Valid())
}
