// Package anchor implements the attestation registry: issuance,
// subject-indexed lookup, and revocation of signed anchors. It never
// stores raw identity material, only hashed fingerprints, and it
// serializes issue/revoke per subject while allowing concurrent reads.
package anchor

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// AnchorType enumerates the kinds of attestation the registry issues.
type AnchorType string

const (
	TypeKYBVerified            AnchorType = "kyb_verified"
	TypeCredentialVerified     AnchorType = "credential_verified"
	TypePlatformVerified       AnchorType = "platform_verified"
	TypeServiceAccountVerified AnchorType = "service_account_verified"
	TypeOIDCVerified           AnchorType = "oidc_verified"
	TypeDomainVerified         AnchorType = "domain_verified"
)

// trustAnchorTypes are the types that grant the snapshot builder's
// "+5 trust anchor" reliability bonus.
var trustAnchorTypes = map[AnchorType]bool{
	TypeKYBVerified: true, TypePlatformVerified: true,
	TypeServiceAccountVerified: true, TypeOIDCVerified: true,
}

// IsTrustAnchor reports whether t grants the trust-anchor reliability bonus.
func IsTrustAnchor(t AnchorType) bool { return trustAnchorTypes[t] }

// Payload carries a type-specific, fingerprint-only attestation body.
// AccountIDFingerprint is always a hashed value of the form
// "sha256:<hex>" — raw identity material never enters the registry.
type Payload struct {
	AccountIDFingerprint string                 `json:"account_id_fingerprint"`
	Extra                map[string]interface{} `json:"extra,omitempty"`
}

// IssuerSignature is the registry operator's attestation over the
// canonical anchor body.
type IssuerSignature struct {
	SignerPublicKeyB58 string `json:"signer_public_key_b58"`
	SigB58             string `json:"sig_b58"`
}

// Attestation is one issued anchor.
type Attestation struct {
	AnchorID               string          `json:"anchor_id"`
	SubjectSignerPublicKeyB58 string       `json:"subject_signer_public_key_b58"`
	AnchorType             AnchorType      `json:"anchor_type"`
	VerificationMethod     string          `json:"verification_method"`
	DisplayName            string          `json:"display_name,omitempty"`
	Payload                Payload         `json:"payload"`
	IssuedAtMs             int64           `json:"issued_at_ms"`
	ExpiresAtMs            int64           `json:"expires_at_ms,omitempty"`
	Revoked                bool            `json:"revoked"`
	RevokedAtMs            int64           `json:"revoked_at_ms,omitempty"`
	Reason                 string          `json:"reason,omitempty"`
	IssuerSignature        IssuerSignature `json:"issuer_signature"`
}

func (a *Attestation) dedupKey() string {
	return a.SubjectSignerPublicKeyB58 + "|" + string(a.AnchorType) + "|" + a.VerificationMethod + "|" + a.Payload.AccountIDFingerprint
}

// IssueRequest is the input to Issue. AnchorID is assigned by the
// registry, never the caller; IssuedAtMs is taken from the request as
// given (anchorhttp fills it from its clock).
type IssueRequest struct {
	SubjectSignerPublicKeyB58 string
	AnchorType                AnchorType
	VerificationMethod        string
	DisplayName               string
	Payload                   Payload
	ExpiresAtMs               int64
	IssuedAtMs                int64
	Sign                      func(canonicalAnchor []byte) (IssuerSignature, error)
}

// Registry is the insertion-ordered, subject-indexed anchor store.
// subjectLocks gives each subject its own single-writer lock so
// concurrent issuance against different subjects never blocks.
type Registry struct {
	mu           sync.RWMutex
	subjectLocks map[string]*sync.Mutex
	bySubject    map[string][]*Attestation
	byID         map[string]*Attestation
}

// New creates an empty anchor registry.
func New() *Registry {
	return &Registry{
		subjectLocks: make(map[string]*sync.Mutex),
		bySubject:    make(map[string][]*Attestation),
		byID:         make(map[string]*Attestation),
	}
}

func (r *Registry) lockFor(subject string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.subjectLocks[subject]
	if !ok {
		l = &sync.Mutex{}
		r.subjectLocks[subject] = l
	}
	return l
}

// Issue creates a new attestation, deduplicating on
// (subject, anchor_type, verification_method, payload.account_id_fingerprint).
// A duplicate issuance returns the existing attestation rather than an
// error, so retried issuance requests are idempotent.
func (r *Registry) Issue(req IssueRequest) (*Attestation, error) {
	lock := r.lockFor(req.SubjectSignerPublicKeyB58)
	lock.Lock()
	defer lock.Unlock()

	candidate := &Attestation{
		SubjectSignerPublicKeyB58: req.SubjectSignerPublicKeyB58,
		AnchorType:                req.AnchorType,
		VerificationMethod:        req.VerificationMethod,
		DisplayName:               req.DisplayName,
		Payload:                   req.Payload,
		IssuedAtMs:                req.IssuedAtMs,
		ExpiresAtMs:               req.ExpiresAtMs,
	}

	r.mu.RLock()
	for _, existing := range r.bySubject[req.SubjectSignerPublicKeyB58] {
		if existing.dedupKey() == candidate.dedupKey() {
			r.mu.RUnlock()
			return existing, nil
		}
	}
	r.mu.RUnlock()

	candidate.AnchorID = "anchor-" + uuid.New().String()
	if req.Sign != nil {
		canonicalAnchor, err := canonicalize.JCS(candidate)
		if err != nil {
			return nil, pacterr.Wrap(pacterr.KindRegistry, "", err)
		}
		sig, err := req.Sign(canonicalAnchor)
		if err != nil {
			return nil, pacterr.Wrap(pacterr.KindRegistry, "", err)
		}
		candidate.IssuerSignature = sig
	}

	r.mu.Lock()
	r.bySubject[req.SubjectSignerPublicKeyB58] = append(r.bySubject[req.SubjectSignerPublicKeyB58], candidate)
	r.byID[candidate.AnchorID] = candidate
	r.mu.Unlock()

	return candidate, nil
}

// Restore inserts a fully-formed attestation as-is, preserving its
// original anchor_id, issuance time, and revocation state. It is the
// load path a persistence layer uses to rebuild a registry from a
// snapshot; unlike Issue it never regenerates anchor_id or re-signs, so
// anchor_id stays stable across a save/load round trip.
func (r *Registry) Restore(a *Attestation) error {
	if a.AnchorID == "" {
		return pacterr.New(pacterr.KindRegistry, "cannot restore attestation without anchor_id")
	}
	lock := r.lockFor(a.SubjectSignerPublicKeyB58)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.AnchorID]; exists {
		return nil
	}
	cp := *a
	r.bySubject[a.SubjectSignerPublicKeyB58] = append(r.bySubject[a.SubjectSignerPublicKeyB58], &cp)
	r.byID[a.AnchorID] = &cp
	return nil
}

// BySubject returns every anchor issued to pubkey, in issuance order,
// including revoked ones.
func (r *Registry) BySubject(pubkey string) []*Attestation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.bySubject[pubkey]
	out := make([]*Attestation, len(list))
	copy(out, list)
	return out
}

// Revoke marks an anchor revoked. Idempotent: revoking an already-revoked
// anchor succeeds without changing its original revocation timestamp.
func (r *Registry) Revoke(anchorID string, reason string, atMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[anchorID]
	if !ok {
		return pacterr.New(pacterr.KindRegistry, "anchor not found").WithPath(anchorID)
	}
	if a.Revoked {
		return nil
	}
	a.Revoked = true
	a.RevokedAtMs = atMs
	a.Reason = reason
	return nil
}

// AllSubjects returns every subject key with at least one issued anchor,
// sorted for deterministic iteration.
func (r *Registry) AllSubjects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bySubject))
	for s := range r.bySubject {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
