// Package match interprets reconstructed log frames against a running model
// of the current game.
//
// The State value is owned exclusively by the single-threaded classifier;
// nothing else mutates it, so it carries no locking. Classification never
// fails: the upstream payload format is undocumented and shifts between
// client versions, so every handler degrades to emitting nothing rather
// than returning an error.
package match

import "time"

// Zone names as they appear in game-state payloads.
const (
	ZoneBattlefield = "ZoneType_Battlefield"
	ZoneGraveyard   = "ZoneType_Graveyard"
	ZoneExile       = "ZoneType_Exile"
	ZoneHand        = "ZoneType_Hand"
	ZoneLibrary     = "ZoneType_Library"
	ZoneStack       = "ZoneType_Stack"
)

// ObjectInfo tracks one game object across its lifetime. The record is
// updated in place on zone transfers and id changes so identity is
// preserved across transformation; it is deleted only on an explicit
// removed-from-game annotation.
type ObjectInfo struct {
	ID         int
	GrpID      int // catalog id from the upstream payload
	Name       string
	Zone       string
	Owner      int
	Controller int
	Tapped     bool
	// Enriched is set once card details have been requested for this
	// object, so repeated sightings don't re-request.
	Enriched bool
}

// TimerInfo is the last known clock state for one player.
type TimerInfo struct {
	Player     int
	Type       string
	DurationMS int
	ElapsedMS  int
	Running    bool
}

// State is the mutable model of one match. One State exists per match
// lifetime: created on the first game event, reset in place on a rematch
// within the same session, discarded when the match completes.
type State struct {
	MatchID      string
	GameNumber   int
	TurnNumber   int
	ActivePlayer int
	Phase        string
	Step         string

	Life    map[int]int
	Objects map[int]*ObjectInfo
	Timers  map[int]TimerInfo

	// zoneTypes maps upstream zone ids to zone type names, learned from
	// the zones section of game-state payloads.
	zoneTypes map[int]string
	// zoneOwners maps upstream zone ids to their owning seat, 0 for
	// shared zones.
	zoneOwners map[int]int

	Started     bool
	Completed   bool
	CompletedAt time.Time
}

// NewState returns an empty match model.
func NewState() *State {
	s := &State{}
	s.init()
	return s
}

func (s *State) init() {
	s.Life = make(map[int]int)
	s.Objects = make(map[int]*ObjectInfo)
	s.Timers = make(map[int]TimerInfo)
	s.zoneTypes = make(map[int]string)
	s.zoneOwners = make(map[int]int)
}

// Reset clears per-game fields for a rematch within the same session.
// The State value itself survives so the single-owner handoff does not
// change mid-session.
func (s *State) Reset(matchID string) {
	*s = State{MatchID: matchID}
	s.init()
}

// ZoneName resolves an upstream zone id to its type name, or "" when the
// zone has not been described yet.
func (s *State) ZoneName(zoneID int) string {
	return s.zoneTypes[zoneID]
}

// Object returns the tracked object with the given id, or nil.
func (s *State) Object(id int) *ObjectInfo {
	return s.Objects[id]
}

// upsertObject records or updates one game object, preserving any
// already-known name when the payload omits it.
func (s *State) upsertObject(id, grpID, zoneID, owner, controller int, name string) *ObjectInfo {
	obj, ok := s.Objects[id]
	if !ok {
		obj = &ObjectInfo{ID: id}
		s.Objects[id] = obj
	}
	if grpID != 0 {
		obj.GrpID = grpID
	}
	if name != "" {
		obj.Name = name
	}
	if zone := s.ZoneName(zoneID); zone != "" {
		obj.Zone = zone
	}
	if owner != 0 {
		obj.Owner = owner
	}
	if controller != 0 {
		obj.Controller = controller
	}
	return obj
}

// renameObject moves the record for oldID under newID, keeping the same
// ObjectInfo so transformation preserves identity.
func (s *State) renameObject(oldID, newID int) *ObjectInfo {
	obj, ok := s.Objects[oldID]
	if !ok {
		return nil
	}
	delete(s.Objects, oldID)
	obj.ID = newID
	s.Objects[newID] = obj
	return obj
}

// removeObject drops an object from the model. Only called for explicit
// removed-from-game annotations.
func (s *State) removeObject(id int) *ObjectInfo {
	obj := s.Objects[id]
	delete(s.Objects, id)
	return obj
}
