// Package collab declares the narrow interfaces the surrounding
// repository's external collaborators implement: the static pattern
// scanner, dependency manifest auditor, sandboxed execution runner, LLM
// reviewer, platform-specific enforcement runner, and rescan scheduler.
// None of these are implemented here — they consume the core's
// VerifyResult/Permissions outputs as read-only inputs, and the core
// never imports a concrete implementation of any of them.
package collab

import (
	"context"
	"time"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/integrity"
	"github.com/certen/skillvault/pkg/permissions"
)

// Finding is one observation surfaced by a collaborator.
type Finding struct {
	Severity string // "info", "warning", "critical"
	Code     string
	Message  string
}

// Scanner inspects a skill's source for suspicious static patterns.
type Scanner interface {
	ScanSkill(ctx context.Context, root string, perms *permissions.Document) ([]Finding, error)
}

// DependencyAuditor inspects a skill's declared dependency manifest.
type DependencyAuditor interface {
	AuditManifest(ctx context.Context, m *integrity.Manifest) ([]Finding, error)
}

// SandboxRunner executes a skill in an isolated environment.
type SandboxRunner interface {
	RunIsolated(ctx context.Context, root string, perms *permissions.Document) error
}

// ReviewAgent performs an LLM-driven review of a skill's attested
// contents.
type ReviewAgent interface {
	Review(ctx context.Context, root string, att *attestation.Attestation) ([]Finding, error)
}

// EnforcementRunner generates a platform-specific sandbox profile from a
// skill's declared permissions.
type EnforcementRunner interface {
	GenerateProfile(ctx context.Context, perms *permissions.Document) ([]byte, error)
}

// RescanScheduler arranges for a skill to be re-evaluated after a delay,
// e.g. once new scanner signatures or a new revocation list are expected.
type RescanScheduler interface {
	Schedule(ctx context.Context, skillName string, after time.Duration) error
}
