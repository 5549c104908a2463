// Package snapshot fuses transcripts and anchors into a reproducible
// entity graph: one node per signer public key, carrying domain-scoped
// reliability scores and anchor badges, plus a set of recommendations
// for downstream consumers (trust gates, provider selection, revocation
// warnings).
package snapshot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// SchemaVersion is the snapshot wire schema tag.
const SchemaVersion = "pact-passport-snapshot/0.0"

// knownDomains is the set of domain ids the builder recognizes when
// scanning claim subjects. A claim subject is assigned to the longest
// known domain that prefixes it.
var knownDomains = []string{
	"art:authenticity", "art:provenance",
	"api:weather", "api:reliability",
}

// DomainMetrics carries the reliability score computed for one domain.
type DomainMetrics struct {
	ReliabilityScore int `json:"reliability_score"`
}

// Domain is one signer's standing within a single domain.
type Domain struct {
	DomainID string        `json:"domain_id"`
	Metrics  DomainMetrics `json:"metrics"`
}

// Entity is one signer's node in the snapshot graph.
type Entity struct {
	EntityID           string                  `json:"entity_id"`
	SignerPublicKeyB58 string                  `json:"signer_public_key_b58"`
	Domains            []Domain                `json:"domains"`
	Anchors            []*anchor.Attestation   `json:"anchors,omitempty"`
}

// Snapshot is the fused entity graph, schema pact-passport-snapshot/0.0.
type Snapshot struct {
	SchemaVersion   string   `json:"schema_version"`
	Entities        []Entity `json:"entities"`
	Recommendations []string `json:"recommendations,omitempty"`
	SnapshotID      string   `json:"snapshot_id,omitempty"`
}

// EntityID computes the deterministic entity id for a signer public key.
func EntityID(signerPublicKeyB58 string) (string, error) {
	hash, err := canonicalize.Hash(map[string]interface{}{"signer_public_key_b58": signerPublicKeyB58})
	if err != nil {
		return "", pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	return "entity-" + hash, nil
}

// ConfidenceToReliability maps a [0,1] confidence to a [0,100] integer
// reliability score by scaling and rounding to the nearest integer.
func ConfidenceToReliability(conf float64) int {
	return int(math.Round(conf * 100))
}

type claim struct {
	subject string
	conf    float64
}

// Build fuses transcripts and an anchor registry into a snapshot.
// deterministic is not consulted: snapshot_id is always hashed over the
// canonical form, whose object keys are already sorted recursively, so
// the output is identical whether the flag is true or false.
func Build(transcripts []*transcript.Transcript, registry *anchor.Registry, deterministic bool) (Snapshot, error) {
	signerClaims := make(map[string][]claim)
	signerOrder := []string{}
	seenSigner := make(map[string]bool)
	var minReliabilityGate, minCalibrationGate float64
	hasGate := false
	hasProcurementAccept := false

	for _, t := range transcripts {
		for _, s := range t.Signers() {
			if !seenSigner[s] {
				seenSigner[s] = true
				signerOrder = append(signerOrder, s)
			}
		}
		for i := range t.Rounds {
			r := &t.Rounds[i]
			if r.RoundType == transcript.RoundIntent {
				if g, ok := r.ContentSummary["min_reliability_gate"].(float64); ok {
					minReliabilityGate = g
					hasGate = true
				}
				if g, ok := r.ContentSummary["min_calibration_gate"].(float64); ok {
					minCalibrationGate = g
					hasGate = true
				}
			}
			if r.RoundType == transcript.RoundAccept && t.IntentType == "api.procurement" {
				hasProcurementAccept = true
			}
			claims, ok := r.ContentSummary["claims"].([]interface{})
			if !ok {
				continue
			}
			signer := r.SignerKey()
			for _, c := range claims {
				cm, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				subj, _ := cm["subject"].(string)
				conf, _ := cm["conf"].(float64)
				if subj == "" {
					continue
				}
				signerClaims[signer] = append(signerClaims[signer], claim{subject: subj, conf: conf})
			}
		}
	}

	if registry != nil {
		for _, s := range registry.AllSubjects() {
			if !seenSigner[s] {
				seenSigner[s] = true
				signerOrder = append(signerOrder, s)
			}
		}
	}

	entities := make([]Entity, 0, len(signerOrder))
	var recommendations []string
	for _, signer := range signerOrder {
		id, err := EntityID(signer)
		if err != nil {
			return Snapshot{}, err
		}

		domains := buildDomains(signerClaims[signer])

		var anchors []*anchor.Attestation
		if registry != nil {
			anchors = registry.BySubject(signer)
		}
		domains = applyAnchorBadges(domains, anchors)

		entities = append(entities, Entity{
			EntityID:           id,
			SignerPublicKeyB58: signer,
			Domains:            domains,
			Anchors:            anchors,
		})

		recommendations = append(recommendations, authenticityRecommendations(signerClaims[signer])...)
		recommendations = append(recommendations, revocationRecommendations(anchors)...)
	}

	if hasGate {
		recommendations = append(recommendations, trustGateRecommendation(minReliabilityGate, minCalibrationGate))
	}
	if hasProcurementAccept {
		recommendations = append(recommendations, "provider_selection")
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })
	recommendations = dedupeStrings(recommendations)

	snap := Snapshot{SchemaVersion: SchemaVersion, Entities: entities, Recommendations: recommendations}
	id, err := canonicalize.Hash(map[string]interface{}{
		"version":         SchemaVersion,
		"entities":        entities,
		"recommendations": recommendations,
	})
	if err != nil {
		return Snapshot{}, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	snap.SnapshotID = "snapshot-" + id
	return snap, nil
}

func buildDomains(claims []claim) []Domain {
	byDomain := make(map[string][]float64)
	for _, c := range claims {
		domain := matchDomain(c.subject)
		if domain == "" {
			continue
		}
		byDomain[domain] = append(byDomain[domain], c.conf)
	}

	domainIDs := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domainIDs = append(domainIDs, d)
	}
	sort.Strings(domainIDs)

	domains := make([]Domain, 0, len(domainIDs))
	for _, d := range domainIDs {
		maxConf := 0.0
		for _, conf := range byDomain[d] {
			if conf > maxConf {
				maxConf = conf
			}
		}
		domains = append(domains, Domain{
			DomainID: d,
			Metrics:  DomainMetrics{ReliabilityScore: ConfidenceToReliability(maxConf)},
		})
	}
	return domains
}

func matchDomain(subject string) string {
	best := ""
	for _, d := range knownDomains {
		if strings.HasPrefix(subject, d) && len(d) > len(best) {
			best = d
		}
	}
	return best
}

// identityDomain is the synthetic domain carrying a signer's base-50
// reliability baseline when anchors exist but no claim put the signer in
// any known domain — otherwise anchor badges would have nowhere to land.
const identityDomain = "identity"

const baseReliability = 50

// applyAnchorBadges adjusts every domain's reliability score by +5 for
// any trust anchor and -10 per revoked anchor (capped at -20). When the
// signer has anchors but no domain from claims, it synthesizes a single
// identityDomain entry starting from the base-50 baseline so the badge
// adjustment has somewhere to register.
func applyAnchorBadges(domains []Domain, anchors []*anchor.Attestation) []Domain {
	if len(domains) == 0 {
		if len(anchors) == 0 {
			return domains
		}
		domains = []Domain{{DomainID: identityDomain, Metrics: DomainMetrics{ReliabilityScore: baseReliability}}}
	}
	adjustment := 0
	hasTrustAnchor := false
	revokedCount := 0
	for _, a := range anchors {
		if anchor.IsTrustAnchor(a.AnchorType) {
			hasTrustAnchor = true
		}
		if a.Revoked {
			revokedCount++
		}
	}
	if hasTrustAnchor {
		adjustment += 5
	}
	revokedPenalty := -10 * revokedCount
	if revokedPenalty < -20 {
		revokedPenalty = -20
	}
	adjustment += revokedPenalty

	for i := range domains {
		score := domains[i].Metrics.ReliabilityScore + adjustment
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		domains[i].Metrics.ReliabilityScore = score
	}
	return domains
}

// authenticityRecommendations flags an art:authenticity claim set that
// dipped below 0.80 confidence at some point and peaked at 0.90 or above
// overall: "rerun_escalate" if no claim after the low one reached 0.90+,
// "cleared" once a later high-confidence rerun has happened.
func authenticityRecommendations(claims []claim) []string {
	var confs []float64
	for _, c := range claims {
		if matchDomain(c.subject) == "art:authenticity" {
			confs = append(confs, c.conf)
		}
	}
	if len(confs) == 0 {
		return nil
	}

	lowIdx := -1
	maxConf := confs[0]
	for i, c := range confs {
		if c < 0.80 && lowIdx == -1 {
			lowIdx = i
		}
		if c > maxConf {
			maxConf = c
		}
	}
	if lowIdx == -1 || maxConf < 0.90 {
		return nil
	}
	for i := lowIdx + 1; i < len(confs); i++ {
		if confs[i] >= 0.90 {
			return []string{"cleared"}
		}
	}
	return []string{"rerun_escalate"}
}

func revocationRecommendations(anchors []*anchor.Attestation) []string {
	for _, a := range anchors {
		if a.Revoked {
			return []string{"avoid_revoked_identity", "revocation_warning"}
		}
	}
	return nil
}

func trustGateRecommendation(minReliability, minCalibration float64) string {
	return fmt.Sprintf("trust_gate:min_reliability=%.2f,min_calibration=%.2f", minReliability, minCalibration)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
