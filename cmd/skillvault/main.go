// Command skillvault signs, verifies, and co-signs skill vaults, and
// issues and checks revocation lists, from the command line.
package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/cache/memcache"
	"github.com/certen/skillvault/pkg/config"
	"github.com/certen/skillvault/pkg/envelope"
	"github.com/certen/skillvault/pkg/keyring"
	"github.com/certen/skillvault/pkg/logging"
	"github.com/certen/skillvault/pkg/metrics"
	"github.com/certen/skillvault/pkg/permissions"
	"github.com/certen/skillvault/pkg/registry"
	"github.com/certen/skillvault/pkg/revocation"
	"github.com/certen/skillvault/pkg/schema"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sign":
		err = runSign(os.Args[2:])
	case "cosign":
		err = runCosign(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "revoke":
		err = runRevoke(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "skillvault: unknown subcommand %q\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("skillvault %s: %v", os.Args[1], err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: skillvault <subcommand> [flags]

subcommands:
  sign            produce a .vault for a skill directory
  cosign          add an additional signature to an existing .vault
  verify          verify a skill directory's .vault
  revoke issue    issue a signed revocation list
  revoke verify   check whether a skill is on a revocation list
  serve           run the verify/revocation-status HTTP registry

every subcommand accepts -config to load defaults (keyring path, log
level/format, metrics address) from a skillvault.yaml file, overridden
by SKILLVAULT_* environment variables; see pkg/config.`)
}

// loadConfigAndLogger loads configuration (an optional YAML file at
// configPath, overridden by environment variables) and builds the *logging.Logger every subcommand
// below uses for its sign/verify/revoke/serve path.
func loadConfigAndLogger(configPath string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	root := fs.String("root", ".", "skill directory to sign")
	name := fs.String("name", "", "skill name")
	version := fs.String("version", "", "skill version")
	skillType := fs.String("type", "agent-skill", "skill type")
	keyPath := fs.String("key", "", "path to a raw 64-byte ed25519 private key file")
	permsPath := fs.String("permissions", "", "path to a permissions.json document (optional)")
	critical := fs.String("critical", "", "comma-separated list of attestation fields the verifier must not silently ignore")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	if *name == "" || *version == "" || *keyPath == "" {
		return fmt.Errorf("-name, -version, and -key are required")
	}

	_, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}

	priv, err := loadPrivateKey(*keyPath)
	if err != nil {
		return err
	}

	perms, err := loadPermissions(*permsPath)
	if err != nil {
		return err
	}

	var criticalFields []string
	if *critical != "" {
		criticalFields = splitCommaList(*critical)
	}

	b := envelope.NewBuilder()
	b.Logger = logger
	if err := b.Sign(*root, attestation.Skill{Name: *name, Version: *version, Type: *skillType}, perms, priv, criticalFields); err != nil {
		return err
	}
	fmt.Printf("signed %s (%s %s)\n", *root, *name, *version)
	return nil
}

func runCosign(args []string) error {
	fs := flag.NewFlagSet("cosign", flag.ExitOnError)
	root := fs.String("root", ".", "skill directory whose vault to co-sign")
	keyPath := fs.String("key", "", "path to an additional ed25519 private key")
	keyringPath := fs.String("keyring", "", "path to the trusted keyring (must already trust the existing signer)")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	if *keyPath == "" || *keyringPath == "" {
		return fmt.Errorf("-key and -keyring are required")
	}

	_, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}

	priv, err := loadPrivateKey(*keyPath)
	if err != nil {
		return err
	}
	kr, err := keyring.LoadFile(*keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	b := envelope.NewBuilder()
	b.Logger = logger
	if err := b.CoSign(*root, kr, priv); err != nil {
		return err
	}
	fmt.Printf("co-signed %s\n", *root)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	root := fs.String("root", ".", "skill directory to verify")
	keyringPath := fs.String("keyring", "", "path to the trusted keyring")
	context := fs.String("context", "runtime", `verification context: "install" or "runtime"`)
	revocationPath := fs.String("revocation-list", "", "path to a signed revocation list (optional)")
	lastValidPath := fs.String("last-valid-revocation-list", "", "path to the last pre-verified revocation list, for runtime fallback")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	cfg, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if *keyringPath == "" {
		*keyringPath = cfg.KeyringPath
	}
	if *keyringPath == "" {
		return fmt.Errorf("-keyring is required (or set keyring_path in -config)")
	}
	kr, err := keyring.LoadFile(*keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	var verifyContext envelope.Context
	switch *context {
	case "install":
		verifyContext = envelope.ContextInstall
	case "runtime":
		verifyContext = envelope.ContextRuntime
	default:
		return fmt.Errorf("invalid -context %q: must be \"install\" or \"runtime\"", *context)
	}

	var list, lastValid *revocation.List
	if *revocationPath != "" {
		if list, err = loadRevocationList(*revocationPath); err != nil {
			return err
		}
	}
	if *lastValidPath != "" {
		if lastValid, err = loadRevocationList(*lastValidPath); err != nil {
			return err
		}
	}

	verifier := envelope.NewVerifier()
	verifier.Logger = logger
	result := verifier.Verify(*root, envelope.VerifyOptions{
		Keyring:                 kr,
		Context:                 verifyContext,
		RevocationList:          list,
		LastValidRevocationList: lastValid,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

func runRevoke(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("revoke requires a sub-subcommand: issue or verify")
	}
	switch args[0] {
	case "issue":
		return runRevokeIssue(args[1:])
	case "verify":
		return runRevokeVerify(args[1:])
	default:
		return fmt.Errorf("unknown revoke sub-subcommand %q", args[0])
	}
}

func runRevokeIssue(args []string) error {
	fs := flag.NewFlagSet("revoke issue", flag.ExitOnError)
	keyPath := fs.String("key", "", "path to the revocation authority's ed25519 private key")
	seq := fs.Uint64("sequence", 0, "monotonic sequence number")
	entriesPath := fs.String("entries", "", "path to a JSON array of revocation entries")
	validFor := fs.Duration("valid-for", 7*24*time.Hour, "how long the issued list remains valid")
	nextUpdate := fs.Duration("next-update", 24*time.Hour, "expected time until the next list is issued")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	if *keyPath == "" || *entriesPath == "" {
		return fmt.Errorf("-key and -entries are required")
	}

	_, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}

	priv, err := loadPrivateKey(*keyPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*entriesPath)
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}
	var entries []revocation.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse entries: %w", err)
	}

	now := time.Now().UTC()
	list, err := revocation.Issue(*seq, entries, now, now.Add(*validFor), now.Add(*nextUpdate), priv)
	issueLog := logger.WithComponent("revocation").WithOperation("issue").WithFields(
		logging.Field{"sequence_number", *seq}, logging.Field{"entry_count", len(entries)},
	)
	if err != nil {
		issueLog.WithError(err).Error("revocation list issue failed")
		return err
	}
	issueLog.Info("revocation list issued")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func runRevokeVerify(args []string) error {
	fs := flag.NewFlagSet("revoke verify", flag.ExitOnError)
	listPath := fs.String("list", "", "path to a signed revocation list")
	name := fs.String("name", "", "skill name to check")
	version := fs.String("version", "", "skill version to check")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	if *listPath == "" || *name == "" || *version == "" {
		return fmt.Errorf("-list, -name, and -version are required")
	}

	_, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}

	list, err := loadRevocationList(*listPath)
	if err != nil {
		return err
	}

	revoked := revocation.IsRevoked(*name, *version, list)
	trustLevel := "full"
	if revoked {
		trustLevel = "none"
	}
	errorCode := ""
	if revoked {
		errorCode = revocation.ErrRevoked
	}
	logger.LogRevocation(*name, trustLevel, errorCode, "")

	if revoked {
		fmt.Printf("%s %s is revoked\n", *name, *version)
		os.Exit(1)
	}
	fmt.Printf("%s %s is not revoked\n", *name, *version)
	return nil
}

// runServe starts the pkg/registry HTTP surface: POST /v1/verify, GET
// /v1/revocations/current, plus a separate Prometheus scrape listener.
// It is the one long-running subcommand, and the one that exercises
// pkg/config, pkg/metrics, and pkg/cache end to end.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address for the verify/revocations API")
	keyringPath := fs.String("keyring", "", "path to the trusted keyring")
	revocationPath := fs.String("revocation-list", "", "path to a signed revocation list to hold as current (optional)")
	lastValidPath := fs.String("last-valid-revocation-list", "", "path to the last pre-verified revocation list (optional)")
	configPath := fs.String("config", "", "path to skillvault.yaml (optional)")
	fs.Parse(args)

	cfg, logger, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if *keyringPath == "" {
		*keyringPath = cfg.KeyringPath
	}
	if *keyringPath == "" {
		return fmt.Errorf("-keyring is required (or set keyring_path in -config)")
	}
	kr, err := keyring.LoadFile(*keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	var current, lastValid *revocation.List
	if *revocationPath != "" {
		if current, err = loadRevocationList(*revocationPath); err != nil {
			return err
		}
	}
	if *lastValidPath != "" {
		if lastValid, err = loadRevocationList(*lastValidPath); err != nil {
			return err
		}
	}

	verifier := envelope.NewVerifier()
	verifier.Logger = logger
	reg := metrics.NewRegistry(nil)

	h := registry.NewHandlers(verifier, kr, reg, logger)
	h.CurrentList = current
	h.LastValidList = lastValid
	h.SequenceCache = memcache.New()

	if cfg.MetricsAddr != "" {
		go func() {
			mlog := logger.WithComponent("metrics")
			mlog.Info("metrics listener starting", logging.Field{"addr", cfg.MetricsAddr})
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				mlog.WithError(err).Error("metrics listener exited")
			}
		}()
	}

	logger.WithComponent("registry").Info("registry listening", logging.Field{"addr", *addr})
	return http.ListenAndServe(*addr, h.Mux())
}

func loadPermissions(path string) (*permissions.Document, error) {
	if path == "" {
		return &permissions.Document{SchemaVersion: "1.0", Network: permissions.NetworkPolicy{Mode: "none"}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions: %w", err)
	}
	var doc permissions.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse permissions: %w", err)
	}
	return &doc, nil
}

func loadRevocationList(path string) (*revocation.List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read revocation list: %w", err)
	}
	list, _, err := schema.ValidateRevocationList(raw)
	if err != nil {
		return nil, fmt.Errorf("parse revocation list: %w", err)
	}
	return list, nil
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("key file %s is not a raw %d-byte ed25519 private key", path, ed25519.PrivateKeySize)
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
