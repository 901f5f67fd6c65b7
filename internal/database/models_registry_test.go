package database

import (
	"testing"

	modelspkg "confessional/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesVoteLedger(t *testing.T) {
	var foundVote, foundCounter bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Vote:
			foundVote = true
		case *modelspkg.Counter:
			foundCounter = true
		}
	}
	require.True(t, foundVote, "PersistentModels should include Vote")
	require.True(t, foundCounter, "PersistentModels should include Counter")
}
