// Package rdsanchor is an optional Redis-backed persistence layer for the
// anchor registry, for deployments that want shared state across multiple
// pactctl/anchorhttp processes instead of the filesystem snapshot in
// internal/store. Core derivation packages never import this package;
// only cmd/pactctl wires it in.
package rdsanchor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

const keyPrefix = "pact:anchors:subject:"
const subjectsSetKey = "pact:anchors:subjects"

// Store is a Redis-backed anchor snapshot store. Each subject's
// attestation list lives under its own key as a JSON array, so
// concurrent subjects never contend on a single large value.
type Store struct {
	client *redis.Client
}

// New connects a Store to a Redis instance. addr is host:port; password
// may be empty; db selects the logical database.
func New(addr, password string, db int) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: client}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func subjectKey(pubkey string) string {
	return keyPrefix + pubkey
}

// SaveSubject overwrites the attestation list for one subject.
func (s *Store) SaveSubject(ctx context.Context, pubkey string, attestations []*anchor.Attestation) error {
	data, err := json.Marshal(attestations)
	if err != nil {
		return pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	if err := s.client.Set(ctx, subjectKey(pubkey), data, 0).Err(); err != nil {
		return pacterr.Wrap(pacterr.KindRegistry, "", fmt.Errorf("redis set: %w", err))
	}
	if err := s.client.SAdd(ctx, subjectsSetKey, pubkey).Err(); err != nil {
		return pacterr.Wrap(pacterr.KindRegistry, "", fmt.Errorf("redis sadd: %w", err))
	}
	return nil
}

// KnownSubjects returns every subject key ever saved through this Store,
// so LoadRegistry can rebuild a full registry without a key scan.
func (s *Store) KnownSubjects(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, subjectsSetKey).Result()
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindRegistry, "", fmt.Errorf("redis smembers: %w", err))
	}
	return members, nil
}

// LoadSubject returns the attestation list for one subject, or an empty
// slice if the subject has never had an anchor issued.
func (s *Store) LoadSubject(ctx context.Context, pubkey string) ([]*anchor.Attestation, error) {
	data, err := s.client.Get(ctx, subjectKey(pubkey)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindRegistry, "", fmt.Errorf("redis get: %w", err))
	}
	var out []*anchor.Attestation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, pacterr.Wrap(pacterr.KindRegistry, "", err)
	}
	return out, nil
}

// Sync writes every subject currently held by reg into Redis, overwriting
// whatever was there. Used to persist a registry's state after a batch of
// Issue/Revoke calls.
func (s *Store) Sync(ctx context.Context, reg *anchor.Registry) error {
	for _, subject := range reg.AllSubjects() {
		if err := s.SaveSubject(ctx, subject, reg.BySubject(subject)); err != nil {
			return err
		}
	}
	return nil
}

// LoadRegistry rebuilds a Registry from Redis by restoring every known
// subject's attestations as-is, mirroring store.LoadAnchorRegistry's
// filesystem path so both backends produce registries with identical
// invariants and stable anchor_ids across reloads.
func (s *Store) LoadRegistry(ctx context.Context, subjects []string) (*anchor.Registry, error) {
	reg := anchor.New()
	for _, subject := range subjects {
		attestations, err := s.LoadSubject(ctx, subject)
		if err != nil {
			return nil, err
		}
		for _, a := range attestations {
			if err := reg.Restore(a); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
