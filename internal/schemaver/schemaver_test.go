package schemaver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pact-protocol/pact-verifier/internal/schemaver"
)

func TestAccept_EmptyTagIsAccepted(t *testing.T) {
	assert.NoError(t, schemaver.Accept("", "pact-transcript", 4))
}

func TestAccept_MatchingNameAndMajorIsAccepted(t *testing.T) {
	assert.NoError(t, schemaver.Accept("pact-transcript/4.0", "pact-transcript", 4))
	assert.NoError(t, schemaver.Accept("pact-transcript/4.2", "pact-transcript", 4))
}

func TestAccept_WrongNameIsRejected(t *testing.T) {
	err := schemaver.Accept("gc_view/1.0", "pact-transcript", 4)
	assert.Error(t, err)
}

func TestAccept_WrongMajorIsRejected(t *testing.T) {
	err := schemaver.Accept("pact-transcript/5.0", "pact-transcript", 4)
	assert.Error(t, err)
}

func TestAccept_UnparseableVersionIsRejected(t *testing.T) {
	err := schemaver.Accept("pact-transcript/not-a-version", "pact-transcript", 4)
	assert.Error(t, err)
}
