package match

import "time"

// Kind classifies an annotation.
type Kind string

// Annotation kinds, in rough order of how often they appear in a match.
const (
	KindZoneTransfer         Kind = "zone_transfer"
	KindUserAction           Kind = "user_action"
	KindCombat               Kind = "combat"
	KindLifeChange           Kind = "life_change"
	KindPhaseTransition      Kind = "phase_transition"
	KindTurnChange           Kind = "turn_change"
	KindPermanentStateChange Kind = "permanent_state_change"
	KindObjectRemoval        Kind = "object_removal"
	KindEffectExpiration     Kind = "effect_expiration"
	KindTimerUpdate          Kind = "timer_update"
)

// Annotation is one human-meaningful interpretation of a frame's effect on
// match state. Only the fields relevant to the Kind are populated; the
// struct is flat so it marshals directly to JSON Lines output.
//
// Any state snapshot embedded here (zones, life totals) reflects the model
// after the frame's delta was applied.
type Annotation struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Object fields (zone transfer, permanent state, removal, expiration).
	ObjectID int    `json:"object_id,omitempty"`
	CardName string `json:"card_name,omitempty"`
	FromZone string `json:"from_zone,omitempty"`
	ToZone   string `json:"to_zone,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Tapped   bool   `json:"tapped,omitempty"`

	// Player fields (life change, timer, turn).
	Player    int `json:"player,omitempty"`
	LifeFrom  int `json:"life_from,omitempty"`
	LifeTo    int `json:"life_to,omitempty"`
	LifeDelta int `json:"life_delta,omitempty"`

	// Turn structure.
	Turn         int    `json:"turn,omitempty"`
	ActivePlayer int    `json:"active_player,omitempty"`
	Phase        string `json:"phase,omitempty"`
	Step         string `json:"step,omitempty"`

	// Combat.
	AttackerID int `json:"attacker_id,omitempty"`
	Damage     int `json:"damage,omitempty"`

	// Timer.
	TimerType    string `json:"timer_type,omitempty"`
	RemainingMS  int    `json:"remaining_ms,omitempty"`
	TimerRunning bool   `json:"timer_running,omitempty"`

	// User actions and pattern matches.
	Action string            `json:"action,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`
}
