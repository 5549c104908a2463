package anchorhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// isRegistryError reports whether err is a pacterr.Error of kind
// KindRegistry. anchor.Registry uses that kind for client-caused failures
// (not-found, bad lookups) and also wraps Issue's canonicalize and sign
// failures in it, so those are treated as registry errors too.
func isRegistryError(err error) bool {
	var perr *pacterr.Error
	return errors.As(err, &perr) && perr.Kind == pacterr.KindRegistry
}

// Clock returns the current time in epoch milliseconds. Handed in rather
// than calling time.Now() directly so issuance/revocation timestamps stay
// swappable in tests.
type Clock func() int64

// Handler serves the anchor registry's three HTTP operations over a
// single in-process Registry. It never persists on its own; callers that
// need durability wire a store.SaveAnchorRegistry or rdsanchor.Store sync
// around it.
type Handler struct {
	reg   *anchor.Registry
	clock Clock
	sign  func([]byte) (anchor.IssuerSignature, error)
}

// NewHandler builds a Handler over an existing registry. sign may be nil,
// in which case issued anchors carry no issuer signature.
func NewHandler(reg *anchor.Registry, clock Clock, sign func([]byte) (anchor.IssuerSignature, error)) *Handler {
	return &Handler{reg: reg, clock: clock, sign: sign}
}

// RegisterRoutes wires the anchor endpoints onto mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/anchors/issue", h.handleIssue)
	mux.HandleFunc("GET /v1/anchors/by-subject/{pubkey}", h.handleBySubject)
	mux.HandleFunc("POST /v1/anchors/revoke", h.handleRevoke)
}

// issueRequest is the wire shape of POST /v1/anchors/issue.
type issueRequest struct {
	SubjectSignerPublicKeyB58 string          `json:"subject_signer_public_key_b58"`
	AnchorType                string          `json:"anchor_type"`
	VerificationMethod        string          `json:"verification_method"`
	DisplayName               string          `json:"display_name,omitempty"`
	Payload                   anchor.Payload  `json:"payload"`
	ExpiresAtMs               int64           `json:"expires_at_ms,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.SubjectSignerPublicKeyB58 == "" {
		writeBadRequest(w, "subject_signer_public_key_b58 is required")
		return
	}
	if req.AnchorType == "" || req.VerificationMethod == "" {
		writeBadRequest(w, "anchor_type and verification_method are required")
		return
	}

	a, err := h.reg.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: req.SubjectSignerPublicKeyB58,
		AnchorType:                anchor.AnchorType(req.AnchorType),
		VerificationMethod:        req.VerificationMethod,
		DisplayName:               req.DisplayName,
		Payload:                   req.Payload,
		ExpiresAtMs:               req.ExpiresAtMs,
		IssuedAtMs:                h.clock(),
		Sign:                      h.sign,
	})
	if err != nil {
		if isRegistryError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"anchor_attestation": a})
}

func (h *Handler) handleBySubject(w http.ResponseWriter, r *http.Request) {
	pubkey := r.PathValue("pubkey")
	if pubkey == "" {
		writeBadRequest(w, "pubkey path segment is required")
		return
	}
	list := h.reg.BySubject(pubkey)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject_signer_public_key_b58": pubkey,
		"anchors":                       list,
	})
}

// revokeRequest is the wire shape of POST /v1/anchors/revoke.
type revokeRequest struct {
	AnchorID    string `json:"anchor_id"`
	Reason      string `json:"reason,omitempty"`
	RevokedAtMs int64  `json:"revoked_at_ms,omitempty"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.AnchorID == "" {
		writeBadRequest(w, "anchor_id is required")
		return
	}

	revokedAtMs := req.RevokedAtMs
	if revokedAtMs == 0 {
		revokedAtMs = h.clock()
	}
	if err := h.reg.Revoke(req.AnchorID, req.Reason, revokedAtMs); err != nil {
		if isRegistryError(err) {
			writeNotFound(w, err.Error())
			return
		}
		writeInternal(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
