// Command noesis drives the agent wake-up protocol from the command line.
//
// "noesis wake" runs a full wake cycle against a local fixture world (a
// seeded identity registry, a self-issued capability credential, and a
// file-backed signing keystore) and prints the established session as JSON.
// "noesis status" prints the most recent lifecycle event from the session
// log.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/noetic-systems/noesis/pkg/attestation"
	"github.com/noetic-systems/noesis/pkg/config"
	"github.com/noetic-systems/noesis/pkg/credentials"
	"github.com/noetic-systems/noesis/pkg/identity"
	"github.com/noetic-systems/noesis/pkg/kms"
	"github.com/noetic-systems/noesis/pkg/manifest"
	"github.com/noetic-systems/noesis/pkg/observability"
	"github.com/noetic-systems/noesis/pkg/store"
	"github.com/noetic-systems/noesis/pkg/wakeup"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "wake":
		return runWakeCmd(args[2:], stdout, stderr)
	case "status":
		return runStatusCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "noesis: unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: noesis <command> [flags]

Commands:
  wake     run a wake-up cycle and print the established session
  status   print the most recent session lifecycle event
  help     show this message`)
}

func runWakeCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("wake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	did := fs.String("did", cfg.AgentDID, "agent DID (defaults to AGENT_DID)")
	runtimeType := fs.String("runtime", cfg.RuntimeType, "runtime type: kubernetes, serverless, edge (empty autodetects)")
	keystorePath := fs.String("keystore", cfg.KeystorePath, "path to the signing keystore")
	sessionsPath := fs.String("sessions", cfg.SessionLogPath, "path to the session log database")
	capabilities := fs.String("capabilities", "read,write", "comma-separated capabilities for the fixture credential")
	rotationMaxAge := fs.Int("rotation-max-age", 30, "max signing key age in days before a rotation warning (0 disables)")
	profileName := fs.String("profile", "", "agent profile name (loads profile_<name>.yaml)")
	profilesDir := fs.String("profiles-dir", ".", "directory holding agent profile files")
	telemetry := fs.Bool("telemetry", cfg.Telemetry, "export traces and metrics over OTLP")
	otlpEndpoint := fs.String("otlp", cfg.OTLPEndpoint, "OTLP gRPC endpoint")
	sampleRate := fs.Float64("sample-rate", 1.0, "trace sample rate, 0.0 to 1.0")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Explicit flags win over profile values.
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *profileName != "" {
		profile, err := config.LoadProfile(*profilesDir, *profileName)
		if err != nil {
			fmt.Fprintf(stderr, "noesis: %v\n", err)
			return 1
		}
		if !explicit["did"] {
			*did = profile.DID
		}
		if !explicit["runtime"] && profile.Runtime.Type != "" {
			*runtimeType = profile.Runtime.Type
		}
		if !explicit["rotation-max-age"] {
			*rotationMaxAge = profile.Rotation.MaxAgeDays
		}
		if !explicit["telemetry"] {
			*telemetry = profile.Telemetry.Enabled
		}
		if !explicit["otlp"] && profile.Telemetry.OTLPEndpoint != "" {
			*otlpEndpoint = profile.Telemetry.OTLPEndpoint
		}
		if !explicit["sample-rate"] && profile.Telemetry.SampleRate > 0 {
			*sampleRate = profile.Telemetry.SampleRate
		}
	}

	if *did == "" {
		*did = "did:noesis:local-agent"
	}

	keys, err := kms.NewSigningKeystore(*keystorePath)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: open keystore: %v\n", err)
		return 1
	}
	signer, err := attestation.NewEd25519Signer(keys)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}

	world, err := fixtureWorld(*did, splitCapabilities(*capabilities))
	if err != nil {
		fmt.Fprintf(stderr, "noesis: seed fixture world: %v\n", err)
		return 1
	}

	db, err := store.Open(*sessionsPath)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	sessionLog, err := store.NewSQLiteSessionLog(db)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}

	opts := []wakeup.Option{
		wakeup.WithRegistry(world.registry),
		wakeup.WithCredentialStore(world.creds),
		wakeup.WithVerifier(world.verifier),
		wakeup.WithSigner(signer),
		wakeup.WithSessionLog(sessionLog),
	}
	if *telemetry {
		obsCfg := observability.DefaultConfig()
		obsCfg.OTLPEndpoint = *otlpEndpoint
		obsCfg.SampleRate = *sampleRate
		obsCfg.Insecure = true // local collector; the CLI carries no TLS material

		obs, err := observability.New(context.Background(), obsCfg)
		if err != nil {
			fmt.Fprintf(stderr, "noesis: init telemetry: %v\n", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = obs.Shutdown(ctx)
		}()
		opts = append(opts, wakeup.WithObservability(obs))
	}
	if *runtimeType != "" {
		opts = append(opts, wakeup.WithRuntimeType(manifest.RuntimeType(*runtimeType)))
	}
	if *rotationMaxAge > 0 {
		opts = append(opts, wakeup.WithRotationPolicy(&credentials.KeyAgePolicy{
			Keys:   keys,
			MaxAge: time.Duration(*rotationMaxAge) * 24 * time.Hour,
		}))
	}

	protocol, err := wakeup.New(*did, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}

	session, err := protocol.WakeUp(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "noesis: wake-up failed: %v\n", err)
		return 1
	}

	for _, warning := range protocol.VerificationErrors() {
		fmt.Fprintf(stderr, "noesis: %s\n", warning)
	}

	out, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "noesis: encode session: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func runStatusCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	did := fs.String("did", cfg.AgentDID, "agent DID (defaults to AGENT_DID)")
	sessionsPath := fs.String("sessions", cfg.SessionLogPath, "path to the session log database")
	history := fs.Int("history", 0, "print the last N lifecycle events instead of only the latest")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *did == "" {
		*did = "did:noesis:local-agent"
	}

	db, err := store.Open(*sessionsPath)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	sessionLog, err := store.NewSQLiteSessionLog(db)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}

	if *history > 0 {
		events, err := sessionLog.List(context.Background(), *did, *history)
		if err != nil {
			fmt.Fprintf(stderr, "noesis: %v\n", err)
			return 1
		}
		if len(events) == 0 {
			fmt.Fprintf(stdout, "no session history for %s\n", *did)
			return 0
		}
		out, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "noesis: encode events: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(out))
		return 0
	}

	latest, err := sessionLog.Latest(context.Background(), *did)
	if err != nil {
		fmt.Fprintf(stderr, "noesis: %v\n", err)
		return 1
	}
	if latest == nil {
		fmt.Fprintf(stdout, "no session history for %s\n", *did)
		return 0
	}

	out, err := json.MarshalIndent(latest, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "noesis: encode event: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

// fixture holds the seeded collaborators backing the local wake cycle.
type fixture struct {
	registry *identity.InMemoryRegistry
	creds    *credentials.InMemoryStore
	verifier *credentials.JWTVerifier
}

// fixtureWorld seeds an identity document and a self-issued capability
// credential so a wake cycle can run without external services.
func fixtureWorld(did string, capabilities []string) (*fixture, error) {
	keySet, err := credentials.NewInMemoryKeySet()
	if err != nil {
		return nil, err
	}

	registry := identity.NewInMemoryRegistry()
	if err := registry.Register(&identity.Document{DID: did}); err != nil {
		return nil, err
	}

	credStore := credentials.NewInMemoryStore()
	cred, err := credentials.Issue(context.Background(), keySet, did, did, capabilities, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if err := credStore.Put(cred); err != nil {
		return nil, err
	}

	return &fixture{
		registry: registry,
		creds:    credStore,
		verifier: credentials.NewJWTVerifier(keySet),
	}, nil
}

func splitCapabilities(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
