package gamestate

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Ordered lookup paths per canonical field. The first path present in a payload
// wins. Dotted paths descend into nested objects.
var (
	roomIDPaths        = []string{"room_id", "roomId", "game.room_id"}
	phasePaths         = []string{"phase", "gamePhase", "game_phase", "game.game_phase", "game.phase"}
	potPaths           = []string{"pot", "total_pot", "game.pot"}
	currentPlayerPaths = []string{"currentPlayerIndex", "current_player_index", "current_player", "game.current_player_index", "game.current_player"}
	communityCountPath = []string{"communityCardCount", "community_card_count", "game.community_card_count"}
	communityCardsPath = []string{"communityCards", "community_cards", "game.community_cards"}
	statusPaths        = []string{"status", "game_status", "game.status"}
	bettingRoundPaths  = []string{"bettingRound", "betting_round", "game.betting_round"}
	gameStartedPaths   = []string{"gameStarted", "game_started", "game.game_started", "is_started"}
	dealerPaths        = []string{"dealerPosition", "dealer_position", "dealer", "game.dealer_position"}
	playersPaths       = []string{"players", "game.players", "room.players"}
	turnRemainingPaths = []string{"turnTimeRemaining", "turn_time_remaining", "time_remaining", "game.turn_time_remaining"}
	turnTotalPaths     = []string{"turnTimeout", "turn_timeout", "turn_time_limit", "game.turn_timeout"}

	playerIDPaths        = []string{"id", "player_id", "user_id", "username"}
	playerPositionPaths  = []string{"position", "seat", "seat_number", "seat_index"}
	playerChipsPaths     = []string{"chips", "stack", "balance"}
	playerBetPaths       = []string{"bet", "current_bet", "currentBet"}
	playerStatusPaths    = []string{"status", "player_status"}
	playerPlayingPaths   = []string{"isPlaying", "is_playing", "in_hand"}
	playerDiscardedPaths = []string{"hasDiscarded", "has_discarded"}
	playerDiscardPaths   = []string{"discardedCard", "discarded_card"}
	playerHandSizePaths  = []string{"handSize", "hand_size", "card_count"}
	playerHandPaths      = []string{"cards", "hand", "hole_cards"}
)

// Normalize resolves the legacy and alternate field names of a game_state or
// room_update payload into one canonical State. roomID is used when the payload
// does not name its room.
func Normalize(roomID string, payload map[string]any) State {
	s := State{
		RoomID:             roomID,
		CurrentPlayerIndex: NoPlayer,
		Players:            []Player{},
	}
	if payload == nil {
		return s
	}

	if v, ok := firstString(payload, roomIDPaths); ok && v != "" {
		s.RoomID = v
	}
	s.Phase, _ = firstString(payload, phasePaths)
	s.Pot, _ = firstInt(payload, potPaths)
	if v, ok := firstInt(payload, currentPlayerPaths); ok {
		s.CurrentPlayerIndex = v
	}
	if v, ok := firstInt(payload, communityCountPath); ok {
		s.CommunityCardCount = v
	} else {
		s.CommunityCardCount, _ = firstLen(payload, communityCardsPath)
	}
	s.Status, _ = firstString(payload, statusPaths)
	s.BettingRound, _ = firstString(payload, bettingRoundPaths)
	s.GameStarted, _ = firstBool(payload, gameStartedPaths)
	s.DealerPosition, _ = firstInt(payload, dealerPaths)
	if v, ok := firstInt(payload, turnRemainingPaths); ok {
		s.TurnTimeRemaining = &v
	}
	s.TurnTimeTotal, _ = firstInt(payload, turnTotalPaths)

	if raw, ok := first(payload, playersPaths); ok {
		s.Players = normalizePlayers(raw)
	}
	return s
}

// RoomIDOf returns the room a payload names, or fallback
func RoomIDOf(payload map[string]any, fallback string) string {
	if v, ok := firstString(payload, roomIDPaths); ok && v != "" {
		return v
	}
	return fallback
}

func normalizePlayers(raw any) []Player {
	var entries []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	case map[string]any:
		// keyed by player id
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			m, ok := v[k].(map[string]any)
			if !ok {
				continue
			}
			if _, has := first(m, playerIDPaths); !has {
				m = withKey(m, "id", k)
			}
			entries = append(entries, m)
		}
	}

	players := make([]Player, 0, len(entries))
	for i, m := range entries {
		players = append(players, normalizePlayer(i, m))
	}
	slices.SortStableFunc(players, func(a, b Player) int {
		return a.Position - b.Position
	})
	return players
}

func normalizePlayer(index int, m map[string]any) Player {
	p := Player{Position: index}
	p.ID, _ = firstString(m, playerIDPaths)
	if v, ok := firstInt(m, playerPositionPaths); ok {
		p.Position = v
	}
	p.Chips, _ = firstInt(m, playerChipsPaths)
	p.Bet, _ = firstInt(m, playerBetPaths)
	p.Status, _ = firstString(m, playerStatusPaths)
	p.IsPlaying, _ = firstBool(m, playerPlayingPaths)
	p.HasDiscarded, _ = firstBool(m, playerDiscardedPaths)
	if v, ok := first(m, playerDiscardPaths); ok {
		p.DiscardedCard = cardString(v)
		if p.DiscardedCard != "" {
			p.HasDiscarded = true
		}
	}
	if v, ok := firstInt(m, playerHandSizePaths); ok {
		p.HandSize = v
	} else {
		p.HandSize, _ = firstLen(m, playerHandPaths)
	}
	return p
}

// withKey copies m and sets key. Payload maps are never written in place.
func withKey(m map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

func cardString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]any:
		rank, _ := asString(c["rank"])
		suit, _ := asString(c["suit"])
		return rank + suit
	}
	return ""
}

// lookup walks a dotted path through nested objects
func lookup(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func first(m map[string]any, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			return v, true
		}
	}
	return nil, false
}

func firstString(m map[string]any, paths []string) (string, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if s, ok := asString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstInt(m map[string]any, paths []string) (int, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if n, ok := asInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func firstBool(m map[string]any, paths []string) (bool, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if b, ok := asBool(v); ok {
				return b, true
			}
		}
	}
	return false, false
}

func firstLen(m map[string]any, paths []string) (int, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			if arr, ok := v.([]any); ok {
				return len(arr), true
			}
		}
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}
