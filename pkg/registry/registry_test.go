package registry

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/certen/skillvault/internal/testfixture"
	"github.com/certen/skillvault/pkg/attestation"
	"github.com/certen/skillvault/pkg/cache/memcache"
	"github.com/certen/skillvault/pkg/envelope"
	"github.com/certen/skillvault/pkg/keyring"
	"github.com/certen/skillvault/pkg/permissions"
	"github.com/certen/skillvault/pkg/revocation"
)

func newTestHandlers(t *testing.T) (h *Handlers, root string, priv ed25519.PrivateKey) {
	t.Helper()
	root, pub, priv := testfixture.NewSignedSkillWithKey(t, attestation.Skill{
		Name: "registry-test-skill", Version: "1.0.0", Type: "agent-skill",
	}, permissions.Document{SchemaVersion: "1.0", Network: permissions.NetworkPolicy{Mode: "none"}})

	kr := keyring.New()
	if _, err := kr.Add(pub); err != nil {
		t.Fatalf("Add: %v", err)
	}

	return NewHandlers(envelope.NewVerifier(), kr, nil, nil), root, priv
}

func TestHandleVerify_MethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/verify", nil)
	rr := httptest.NewRecorder()

	h.HandleVerify(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleVerify_MalformedBody(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()

	h.HandleVerify(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleVerify_HappyPath(t *testing.T) {
	h, root, _ := newTestHandlers(t)
	body, _ := json.Marshal(verifyRequest{SkillRoot: root, Context: "runtime"})
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	h.HandleVerify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp verifyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid result, got errors=%v", resp.Errors)
	}
	if resp.TrustLevel != string(envelope.TrustDegraded) {
		t.Fatalf("got trust level %q, want %q (no revocation list held)", resp.TrustLevel, envelope.TrustDegraded)
	}
}

func TestHandleVerify_SequenceCacheRoundTrip(t *testing.T) {
	h, root, priv := newTestHandlers(t)
	h.SequenceCache = memcache.New()

	now := time.Now().UTC()
	list, err := revocation.Issue(5, nil, now, now.Add(24*time.Hour), now.Add(time.Hour), priv)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	h.CurrentList = list

	body, _ := json.Marshal(verifyRequest{SkillRoot: root, SkillName: "registry-test-skill", Context: "install"})
	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()

	h.HandleVerify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp verifyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("expected valid result, got errors=%v", resp.Errors)
	}

	seq, ok, err := h.SequenceCache.Get(req.Context(), "registry-test-skill")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || seq != list.SequenceNumber {
		t.Fatalf("got (%d, %v), want (%d, true)", seq, ok, list.SequenceNumber)
	}
}

func TestHandleCurrentRevocations_NoneHeld(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/revocations/current", nil)
	rr := httptest.NewRecorder()

	h.HandleCurrentRevocations(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}
