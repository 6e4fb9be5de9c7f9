// Package registry exposes the envelope verifier over HTTP, following the
// teacher's hand-rolled handler-struct-plus-http.HandlerFunc style rather
// than pulling in a router framework.
package registry

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/certen/skillvault/pkg/cache"
	"github.com/certen/skillvault/pkg/envelope"
	"github.com/certen/skillvault/pkg/logging"
	"github.com/certen/skillvault/pkg/metrics"
	"github.com/certen/skillvault/pkg/revocation"
)

// Handlers wires a Verifier and a held revocation list into the registry's
// HTTP surface. SequenceCache is optional; when nil, verification falls
// back to the cached_sequence_number field on each individual request.
type Handlers struct {
	Verifier      *envelope.Verifier
	Keyring       envelope.Keyring
	CurrentList   *revocation.List
	LastValidList *revocation.List
	SequenceCache cache.SequenceCache
	Logger        *logging.Logger
	Metrics       *metrics.Registry
}

// NewHandlers constructs a Handlers using the real clock and a
// process-default logger if logger is nil.
func NewHandlers(verifier *envelope.Verifier, kr envelope.Keyring, reg *metrics.Registry, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{Verifier: verifier, Keyring: kr, Logger: logger, Metrics: reg}
}

// verifyRequest is the POST /v1/verify request body: a path reference to
// a skill root already present on the registry's filesystem (the registry
// does not accept raw tarball uploads in this minimal surface) plus the
// verification context to apply.
type verifyRequest struct {
	SkillRoot string `json:"skill_root"`
	SkillName string `json:"skill_name"` // used only as the SequenceCache key; optional
	Context   string `json:"context"`    // "install" | "runtime"

	// CachedSequenceNumber is honored only when no SequenceCache is
	// configured, or SkillName is empty so no cache lookup is possible.
	CachedSequenceNumber uint64 `json:"cached_sequence_number"`
}

type verifyResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
}

type verifyResponseWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type verifyResponse struct {
	Valid       bool                    `json:"valid"`
	TrustLevel  string                  `json:"trustLevel"`
	KeyID       string                  `json:"keyId,omitempty"`
	Warnings    []verifyResponseWarning `json:"warnings"`
	Errors      []verifyResponseError   `json:"errors"`
	Attestation interface{}             `json:"attestation,omitempty"`
	Permissions interface{}             `json:"permissions,omitempty"`
}

// HandleVerify implements POST /v1/verify.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := uuid.NewString()
	log := h.Logger.WithFields(logging.Field{"request_id", requestID}).WithComponent("registry")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("malformed verify request body")
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx := envelope.ContextRuntime
	if req.Context == "install" {
		ctx = envelope.ContextInstall
	}

	cachedSeq := req.CachedSequenceNumber
	if h.SequenceCache != nil && req.SkillName != "" {
		if seq, ok, err := h.SequenceCache.Get(r.Context(), req.SkillName); err != nil {
			log.WithError(err).Warn("sequence cache lookup failed; falling back to request value")
		} else if ok {
			cachedSeq = seq
		}
	}

	start := time.Now()
	result := h.Verifier.Verify(req.SkillRoot, envelope.VerifyOptions{
		Keyring:                 h.Keyring,
		Context:                 ctx,
		RevocationList:          h.CurrentList,
		LastValidRevocationList: h.LastValidList,
		CachedSequenceNumber:    cachedSeq,
	})
	duration := time.Since(start)

	if h.SequenceCache != nil && req.SkillName != "" && result.HasNewCachedSequenceNumber {
		if err := h.SequenceCache.Set(r.Context(), req.SkillName, result.NewCachedSequenceNumber); err != nil {
			log.WithError(err).Warn("sequence cache update failed")
		}
	}

	log.LogVerify(req.SkillRoot, string(result.TrustLevel), result.Valid, duration)
	if h.Metrics != nil {
		h.Metrics.VerifyTotal.WithLabelValues(string(result.TrustLevel)).Inc()
		h.Metrics.VerifyDurationSeconds.Observe(duration.Seconds())
	}

	resp := toVerifyResponse(result)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleCurrentRevocations implements GET /v1/revocations/current.
func (h *Handlers) HandleCurrentRevocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.CurrentList == nil {
		writeJSONError(w, http.StatusNotFound, "no revocation list is currently held")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.CurrentList)
}

func toVerifyResponse(r *envelope.VerifyResult) verifyResponse {
	resp := verifyResponse{
		Valid:      r.Valid,
		TrustLevel: string(r.TrustLevel),
		KeyID:      r.KeyID,
		Warnings:   []verifyResponseWarning{},
		Errors:     []verifyResponseError{},
	}
	for _, warn := range r.Warnings {
		resp.Warnings = append(resp.Warnings, verifyResponseWarning{Code: string(warn.Code), Message: warn.Message})
	}
	for _, verr := range r.Errors {
		resp.Errors = append(resp.Errors, verifyResponseError{Code: string(verr.Code), Message: verr.Message, File: verr.File})
	}
	if r.Attestation != nil {
		resp.Attestation = r.Attestation
	}
	if r.Permissions != nil {
		resp.Permissions = r.Permissions
	}
	return resp
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Mux builds an http.ServeMux wired to this Handlers, for callers that
// want the default route table without assembling it themselves.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/verify", h.HandleVerify)
	mux.HandleFunc("/v1/revocations/current", h.HandleCurrentRevocations)
	return mux
}
