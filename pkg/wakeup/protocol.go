package wakeup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noetic-systems/noesis/pkg/attestation"
	"github.com/noetic-systems/noesis/pkg/credentials"
	"github.com/noetic-systems/noesis/pkg/identity"
	"github.com/noetic-systems/noesis/pkg/kms"
	"github.com/noetic-systems/noesis/pkg/manifest"
	"github.com/noetic-systems/noesis/pkg/observability"
	"github.com/noetic-systems/noesis/pkg/store"
)

// Protocol orchestrates the wake-up sequence for one agent identity. One
// Protocol value is owned by one agent process lifecycle; WakeUp and Sleep
// serialize on an internal mutex, so a second call blocks until the one in
// flight completes.
type Protocol struct {
	mu                 sync.Mutex
	agentDID           string
	runtimeType        manifest.RuntimeType
	state              State
	verificationErrors []string
	session            *Session

	registry   identity.Registry
	creds      credentials.Store
	verifier   credentials.Verifier
	rotation   credentials.RotationPolicy // optional; nil skips the check
	signer     attestation.Signer
	collector  manifest.Collector
	sessionLog store.SessionLog // optional
	obs        *observability.Provider
	logger     *slog.Logger
	tracer     trace.Tracer

	newSessionID func() string
	clock        func() time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithRegistry injects the identity registry collaborator.
func WithRegistry(r identity.Registry) Option {
	return func(p *Protocol) { p.registry = r }
}

// WithCredentialStore injects the credential store collaborator.
func WithCredentialStore(s credentials.Store) Option {
	return func(p *Protocol) { p.creds = s }
}

// WithVerifier injects the credential verifier collaborator.
func WithVerifier(v credentials.Verifier) Option {
	return func(p *Protocol) { p.verifier = v }
}

// WithRotationPolicy injects the optional rotation policy. Without it the
// rotation check is skipped entirely.
func WithRotationPolicy(r credentials.RotationPolicy) Option {
	return func(p *Protocol) { p.rotation = r }
}

// WithSigner injects the attestation signer collaborator.
func WithSigner(s attestation.Signer) Option {
	return func(p *Protocol) { p.signer = s }
}

// WithCollector injects the runtime manifest collector.
func WithCollector(c manifest.Collector) Option {
	return func(p *Protocol) { p.collector = c }
}

// WithSessionLog injects the optional session lifecycle log.
func WithSessionLog(l store.SessionLog) Option {
	return func(p *Protocol) { p.sessionLog = l }
}

// WithRuntimeType pins the runtime type instead of autodetecting it.
func WithRuntimeType(rt manifest.RuntimeType) Option {
	return func(p *Protocol) { p.runtimeType = rt }
}

// WithObservability wires tracing and metrics through the provider.
func WithObservability(o *observability.Provider) Option {
	return func(p *Protocol) {
		p.obs = o
		if o != nil {
			p.tracer = o.Tracer()
		}
	}
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// New constructs a dormant protocol for the given agent DID. Collaborators
// not injected via options get default implementations: in-memory registry
// and credential store, EdDSA JWT verifier over a fresh key set, environment
// manifest collector, and an ephemeral attestation signer.
func New(agentDID string, opts ...Option) (*Protocol, error) {
	if agentDID == "" {
		return nil, errors.New("wakeup: empty agent DID")
	}

	p := &Protocol{
		agentDID:     agentDID,
		state:        StateDormant,
		logger:       slog.Default().With("component", "wakeup"),
		newSessionID: func() string { return uuid.New().String() },
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.registry == nil {
		p.registry = identity.NewInMemoryRegistry()
	}
	if p.creds == nil {
		p.creds = credentials.NewInMemoryStore()
	}
	if p.verifier == nil {
		ks, err := credentials.NewInMemoryKeySet()
		if err != nil {
			return nil, fmt.Errorf("wakeup: default verifier: %w", err)
		}
		p.verifier = credentials.NewJWTVerifier(ks)
	}
	if p.collector == nil {
		p.collector = manifest.NewEnvCollector()
	}
	if p.signer == nil {
		// Key material for the default signer stays in memory only; it
		// must not outlive the process or touch disk.
		keys, err := kms.NewEphemeralKeystore()
		if err != nil {
			return nil, fmt.Errorf("wakeup: default signer: %w", err)
		}
		signer, err := attestation.NewEd25519Signer(keys)
		if err != nil {
			return nil, fmt.Errorf("wakeup: default signer: %w", err)
		}
		p.signer = signer
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("noesis.wakeup")
	}

	// Runtime ambiguity must not keep an agent from waking up: anything the
	// collector cannot pin down falls back to kubernetes.
	if p.runtimeType == "" {
		if d, ok := p.collector.(manifest.Detector); ok {
			p.runtimeType = d.Detect()
		}
	}
	if !p.runtimeType.Valid() {
		p.runtimeType = manifest.RuntimeKubernetes
	}

	return p, nil
}

// WakeUp runs the full activation sequence: identity verification,
// attestation generation, session establishment. Callable from any state; a
// call while conscious performs a fresh wake-up with a new session ID,
// superseding the old session. On failure the state is FAILED, no partial
// session is installed, and the typed error carries the diagnostic trail.
func (p *Protocol) WakeUp(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock()
	p.verificationErrors = p.verificationErrors[:0]

	ctx, span := p.tracer.Start(ctx, "wakeup",
		trace.WithAttributes(
			observability.AttrAgentDID.String(p.agentDID),
			observability.AttrRuntimeType.String(string(p.runtimeType)),
		))
	defer span.End()

	session, err := p.run(ctx)

	span.SetAttributes(
		observability.AttrWakeUpState.String(string(p.state)),
		observability.AttrWarningCount.Int(len(p.verificationErrors)),
	)
	if p.obs != nil {
		p.obs.RecordWakeUp(ctx, p.clock().Sub(start), err,
			observability.AttrAgentDID.String(p.agentDID),
			observability.AttrWakeUpState.String(string(p.state)),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "wake-up failed",
			"agent_did", p.agentDID,
			"state", p.state,
			"error", err,
		)
		p.recordEvent(ctx, store.EventWakeFailed, "")
		return nil, err
	}

	if p.obs != nil {
		p.obs.SessionOpened(ctx, observability.AttrAgentDID.String(p.agentDID))
	}
	p.logger.InfoContext(ctx, "agent conscious",
		"agent_did", p.agentDID,
		"session_id", session.ID,
		"runtime_type", p.runtimeType,
		"capabilities", len(session.Capabilities),
		"warnings", len(p.verificationErrors),
	)
	p.recordEvent(ctx, store.EventWake, session.ID)
	return session, nil
}

// run executes the three phases in strict order. Each step is a hard gate:
// failure aborts the remaining steps and nothing is committed.
func (p *Protocol) run(ctx context.Context) (*Session, error) {
	p.state = StateVerifying
	creds, err := p.verifyIdentity(ctx)
	if err != nil {
		p.state = StateFailed
		return nil, err
	}

	p.state = StateAttesting
	att, err := p.generateAttestation(ctx)
	if err != nil {
		p.state = StateFailed
		p.appendError(fmt.Sprintf("attestation failed: %v", err))
		return nil, &SessionEstablishmentError{
			AgentDID: p.agentDID,
			Trail:    slices.Clone(p.verificationErrors),
			Err:      err,
		}
	}

	p.state = StateEstablishing
	_, span := p.tracer.Start(ctx, "wakeup.establish")
	session := &Session{
		ID:            p.newSessionID(),
		AgentDID:      p.agentDID,
		RuntimeType:   p.runtimeType,
		Attestation:   att,
		Capabilities:  UnionCapabilities(creds),
		Conscious:     true,
		EstablishedAt: p.clock().UTC(),
	}
	span.SetAttributes(observability.AttrSessionID.String(session.ID))
	span.End()

	p.session = session
	p.state = StateConscious
	return session, nil
}

// verifyIdentity resolves the agent's identity, loads and verifies its
// credentials, and runs the advisory rotation check. Absence of identity,
// an empty credential set, and any invalid credential are all fatal: a
// partial credential set would produce ambiguous capability grants.
func (p *Protocol) verifyIdentity(ctx context.Context) ([]credentials.Credential, error) {
	ctx, span := p.tracer.Start(ctx, "wakeup.verify")
	defer span.End()

	doc, err := p.registry.Resolve(ctx, p.agentDID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			p.appendError(fmt.Sprintf("identity %s not found in registry", p.agentDID))
		} else {
			p.appendError(fmt.Sprintf("identity resolution failed: %v", err))
		}
		return nil, p.identityError()
	}

	creds, err := p.creds.ListCredentials(ctx, doc)
	if err != nil {
		p.appendError(fmt.Sprintf("credential listing failed: %v", err))
		return nil, p.identityError()
	}
	if len(creds) == 0 {
		p.appendError(fmt.Sprintf("no credentials issued to %s", p.agentDID))
		return nil, p.identityError()
	}

	invalid := 0
	for _, cred := range creds {
		ok, verr := p.verifier.Verify(ctx, cred)
		switch {
		case verr != nil:
			p.appendError(fmt.Sprintf("credential %s verification error: %v", cred.ID, verr))
			invalid++
		case !ok:
			p.appendError(fmt.Sprintf("credential %s failed verification", cred.ID))
			invalid++
		}
	}
	if invalid > 0 {
		return nil, p.identityError()
	}

	if p.rotation != nil {
		due, rerr := p.rotation.NeedsRotation(ctx, p.agentDID)
		switch {
		case rerr != nil:
			// Rotation lag is a compliance signal, not an operational
			// blocker; a failed check is itself only a warning.
			p.appendError(fmt.Sprintf("warning: rotation check failed: %v", rerr))
		case due:
			p.appendError(fmt.Sprintf("warning: key rotation due for %s", p.agentDID))
		}
	}

	return creds, nil
}

func (p *Protocol) generateAttestation(ctx context.Context) (*attestation.RuntimeAttestation, error) {
	ctx, span := p.tracer.Start(ctx, "wakeup.attest")
	defer span.End()

	facts, err := p.collector.Collect(ctx, p.runtimeType)
	if err != nil {
		return nil, fmt.Errorf("collect runtime manifest: %w", err)
	}

	att, err := p.signer.Sign(ctx, p.agentDID, p.runtimeType, facts, map[string]any{"wake_up": true})
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}
	return att, nil
}

// Sleep clears the active session and returns the protocol to DORMANT. A
// graceful-shutdown signal: calling it while not conscious does nothing.
func (p *Protocol) Sleep(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateConscious {
		return
	}

	sessionID := ""
	if p.session != nil {
		sessionID = p.session.ID
	}
	p.session = nil
	p.state = StateDormant

	if p.obs != nil {
		p.obs.SessionClosed(ctx, observability.AttrAgentDID.String(p.agentDID))
	}
	p.logger.InfoContext(ctx, "agent asleep",
		"agent_did", p.agentDID,
		"session_id", sessionID,
	)
	p.recordEvent(ctx, store.EventSleep, sessionID)
}

// IsConscious reports whether the protocol holds an active session.
func (p *Protocol) IsConscious() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateConscious
}

// ActiveSession returns the current session, or nil unless conscious.
func (p *Protocol) ActiveSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateConscious {
		return nil
	}
	return p.session
}

// State returns the current protocol state.
func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// VerificationErrors returns the diagnostic trail accumulated by the most
// recent wake-up. After a successful wake-up a non-empty trail contains only
// advisory warnings (rotation due); callers should inspect it.
func (p *Protocol) VerificationErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.verificationErrors)
}

// AgentDID returns the agent identity this protocol wakes up.
func (p *Protocol) AgentDID() string { return p.agentDID }

// RuntimeType returns the detected or pinned runtime type.
func (p *Protocol) RuntimeType() manifest.RuntimeType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtimeType
}

func (p *Protocol) appendError(msg string) {
	p.verificationErrors = append(p.verificationErrors, msg)
}

func (p *Protocol) identityError() *IdentityVerificationError {
	return &IdentityVerificationError{
		AgentDID: p.agentDID,
		Trail:    slices.Clone(p.verificationErrors),
	}
}

// recordEvent writes a lifecycle event to the session log. Log failures are
// logged and swallowed: the log is advisory, never a wake-up gate.
func (p *Protocol) recordEvent(ctx context.Context, event, sessionID string) {
	if p.sessionLog == nil {
		return
	}

	detail := ""
	if len(p.verificationErrors) > 0 {
		if b, err := json.Marshal(p.verificationErrors); err == nil {
			detail = string(b)
		}
	}

	ev := store.SessionEvent{
		SessionID: sessionID,
		AgentDID:  p.agentDID,
		Event:     event,
		Detail:    detail,
		Timestamp: p.clock().UTC(),
	}
	if err := p.sessionLog.Record(ctx, ev); err != nil {
		p.logger.WarnContext(ctx, "session log write failed",
			"event", event,
			"error", err,
		)
	}
}
