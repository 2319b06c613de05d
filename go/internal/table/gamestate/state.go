package gamestate

import "strings"

// State is the canonical view of a table produced once per inbound message.
// Values are replaced wholesale, never mutated after Normalize returns them.
type State struct {
	RoomID             string   `json:"room_id,omitempty"`
	Phase              string   `json:"phase"`
	Pot                int      `json:"pot"`
	CurrentPlayerIndex int      `json:"current_player_index"`
	CommunityCardCount int      `json:"community_card_count"`
	Status             string   `json:"status"`
	BettingRound       string   `json:"betting_round"`
	GameStarted        bool     `json:"game_started"`
	DealerPosition     int      `json:"dealer_position"`
	Players            []Player `json:"players"`

	// Turn timer snapshot reported by the server. Not part of the fingerprint.
	TurnTimeRemaining *int `json:"turn_time_remaining,omitempty"`
	TurnTimeTotal     int  `json:"turn_time_total,omitempty"`
}

// Player is one seat in the canonical state
type Player struct {
	ID            string `json:"id"`
	Position      int    `json:"position"`
	Chips         int    `json:"chips"`
	Bet           int    `json:"bet"`
	Status        string `json:"status"`
	IsPlaying     bool   `json:"is_playing"`
	HasDiscarded  bool   `json:"has_discarded"`
	DiscardedCard string `json:"discarded_card,omitempty"`
	HandSize      int    `json:"hand_size"`
}

// NoPlayer marks a state with nobody to act
const NoPlayer = -1

var bettingPhases = map[string]bool{
	"preflop":  true,
	"pre_flop": true,
	"flop":     true,
	"turn":     true,
	"river":    true,
}

// InBettingRound reports whether the hand is in a phase where a player is on the clock
func (s State) InBettingRound() bool {
	return bettingPhases[strings.ToLower(s.Phase)]
}

// HasTurn reports whether the state names a current player with a server-side remaining time
func (s State) HasTurn() bool {
	return s.CurrentPlayerIndex != NoPlayer && s.TurnTimeRemaining != nil
}

// IsKeyUpdate reports whether next differs from prev in a transition that must never be
// suppressed: phase, pot, dealer, community card count or the game-started flag.
func IsKeyUpdate(prev, next State) bool {
	return prev.Phase != next.Phase ||
		prev.Pot != next.Pot ||
		prev.DealerPosition != next.DealerPosition ||
		prev.CommunityCardCount != next.CommunityCardCount ||
		prev.GameStarted != next.GameStarted
}
