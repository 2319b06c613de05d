package gamestate

import "encoding/json"

// Fingerprint is a serialized digest of the fields an observer cares about.
// Two fingerprints are equal iff every critical field is equal.
type Fingerprint string

type criticalPlayer struct {
	ID            string `json:"i"`
	Position      int    `json:"p"`
	Chips         int    `json:"c"`
	Bet           int    `json:"b"`
	Status        string `json:"s"`
	IsPlaying     bool   `json:"a"`
	HasDiscarded  bool   `json:"d"`
	DiscardedCard string `json:"dc"`
	HandSize      int    `json:"h"`
}

type criticalFields struct {
	Phase              string           `json:"ph"`
	Pot                int              `json:"po"`
	CurrentPlayerIndex int              `json:"cp"`
	CommunityCardCount int              `json:"cc"`
	Status             string           `json:"st"`
	BettingRound       string           `json:"br"`
	GameStarted        bool             `json:"gs"`
	DealerPosition     int              `json:"dp"`
	Players            []criticalPlayer `json:"pl"`
}

// FingerprintOf computes the fingerprint of s. Turn timer fields and the room id are excluded.
func FingerprintOf(s State) Fingerprint {
	c := criticalFields{
		Phase:              s.Phase,
		Pot:                s.Pot,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		CommunityCardCount: s.CommunityCardCount,
		Status:             s.Status,
		BettingRound:       s.BettingRound,
		GameStarted:        s.GameStarted,
		DealerPosition:     s.DealerPosition,
		Players:            make([]criticalPlayer, len(s.Players)),
	}
	for i, p := range s.Players {
		c.Players[i] = criticalPlayer(p)
	}

	// marshalling a struct of scalars cannot fail
	data, _ := json.Marshal(c)
	return Fingerprint(data)
}
