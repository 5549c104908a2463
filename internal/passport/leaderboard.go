package passport

import "sort"

// LeaderboardEntry ranks one signer's passport state.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	AgentID  string  `json:"agent_id"`
	Score    float64 `json:"score"`
	Tier     Tier    `json:"tier"`
}

// Leaderboard ranks passport states by score descending, agent_id
// ascending on ties, for deterministic output regardless of map
// enumeration order.
func Leaderboard(states map[string]*State) []LeaderboardEntry {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := states[ids[i]], states[ids[j]]
		if si.Score != sj.Score {
			return si.Score > sj.Score
		}
		return ids[i] < ids[j]
	})

	entries := make([]LeaderboardEntry, 0, len(ids))
	for i, id := range ids {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			AgentID: id,
			Score:   states[id].Score,
			Tier:    states[id].Tier,
		})
	}
	return entries
}
