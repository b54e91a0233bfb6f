package match

import (
	"strconv"
	"time"

	"github.com/mtgalog/mtgalog-go/internal/enrich"
	"github.com/mtgalog/mtgalog-go/internal/payload"
)

// Upstream annotation type tags handled by the classifier. Anything else
// in the annotations list is skipped.
const (
	annZoneTransfer    = "AnnotationType_ZoneTransfer"
	annObjectIDChanged = "AnnotationType_ObjectIdChanged"
	annDamageDealt     = "AnnotationType_DamageDealt"
	annTappedUntapped  = "AnnotationType_TappedUntappedPermanent"
	annRemovedFromGame = "AnnotationType_RemovedFromGame"
	annAbilityDeleted  = "AnnotationType_AbilityInstanceDeleted"
)

// handleGameState processes one gameStateMessage. Section order matters:
// structural data (zones, objects) is absorbed first so that the
// annotation section can resolve ids, and every state delta lands before
// the annotation describing it is emitted.
func (c *Classifier) handleGameState(gsm payload.Value, ts time.Time, st *State, res *Result) {
	if !gsm.IsValid() {
		return
	}
	st.Started = true

	c.absorbGameInfo(gsm.Get("gameInfo"), ts, st)
	c.absorbZones(gsm.Get("zones"), st)
	c.absorbObjects(gsm.Get("gameObjects"), ts, st, res)
	c.applyTurnInfo(gsm.Get("turnInfo"), ts, st, res)
	c.applyLifeTotals(gsm.Get("players"), ts, st, res)
	c.applyAnnotations(gsm.Get("annotations"), ts, st, res)
}

// absorbGameInfo tracks game boundaries within a match.
func (c *Classifier) absorbGameInfo(info payload.Value, ts time.Time, st *State) {
	if !info.IsValid() {
		return
	}
	if n, ok := info.Get("gameNumber").Int(); ok && n != st.GameNumber {
		if st.GameNumber != 0 {
			// Next game of the same match: fresh board, same match id.
			matchID := st.MatchID
			st.Reset(matchID)
			st.Started = true
		}
		st.GameNumber = n
	}
	switch info.Get("stage").StrOr("") {
	case "GameStage_GameOver":
		st.Completed = true
		st.CompletedAt = ts
	}
}

// absorbZones learns the zone id -> zone type mapping.
func (c *Classifier) absorbZones(zones payload.Value, st *State) {
	for _, z := range zones.Arr() {
		id, ok := z.Get("zoneId").Int()
		if !ok {
			continue
		}
		if typ, ok := z.Get("type").Str(); ok {
			st.zoneTypes[id] = typ
		}
		if owner, ok := z.Get("ownerSeatId").Int(); ok {
			st.zoneOwners[id] = owner
		}
	}
}

// absorbObjects upserts every listed game object and requests card details
// for objects whose names are unknown.
func (c *Classifier) absorbObjects(objs payload.Value, ts time.Time, st *State, res *Result) {
	for _, o := range objs.Arr() {
		id, ok := o.Get("instanceId").Int()
		if !ok {
			continue
		}
		obj := st.upsertObject(
			id,
			o.Get("grpId").IntOr(0),
			o.Get("zoneId").IntOr(0),
			o.Get("ownerSeatId").IntOr(0),
			o.Get("controllerSeatId").IntOr(0),
			o.Get("name").StrOr(""),
		)
		if hint := enrichmentHint(obj); hint != "" && !obj.Enriched {
			obj.Enriched = true
			res.Requests = append(res.Requests, enrich.Request{
				ObjectID:    obj.ID,
				Hint:        hint,
				RequestedAt: ts,
			})
		}
	}
}

// enrichmentHint picks the lookup key for an object: its name when the
// payload revealed one, otherwise the catalog id. Objects with neither
// stay placeholders.
func enrichmentHint(obj *ObjectInfo) string {
	if obj.Name != "" {
		return obj.Name
	}
	if obj.GrpID != 0 {
		return "grpid:" + strconv.Itoa(obj.GrpID)
	}
	return ""
}

// applyTurnInfo diffs turn structure and emits TurnChange and
// PhaseTransition annotations after updating the model.
func (c *Classifier) applyTurnInfo(info payload.Value, ts time.Time, st *State, res *Result) {
	if !info.IsValid() {
		return
	}

	if turn, ok := info.Get("turnNumber").Int(); ok && turn != st.TurnNumber {
		st.TurnNumber = turn
		if ap, ok := info.Get("activePlayer").Int(); ok {
			st.ActivePlayer = ap
		}
		res.Annotations = append(res.Annotations, Annotation{
			Kind:         KindTurnChange,
			Timestamp:    ts,
			Turn:         st.TurnNumber,
			ActivePlayer: st.ActivePlayer,
		})
	} else if ap, ok := info.Get("activePlayer").Int(); ok {
		st.ActivePlayer = ap
	}

	phase, phaseOK := info.Get("phase").Str()
	step, _ := info.Get("step").Str()
	if phaseOK && (phase != st.Phase || step != st.Step) {
		st.Phase = phase
		st.Step = step
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindPhaseTransition,
			Timestamp: ts,
			Phase:     phase,
			Step:      step,
			Turn:      st.TurnNumber,
		})
	}
}

// applyLifeTotals diffs each seat's life total against the model. The
// first observation of a seat establishes a baseline silently.
func (c *Classifier) applyLifeTotals(players payload.Value, ts time.Time, st *State, res *Result) {
	for _, p := range players.Arr() {
		seat, ok := p.Get("systemSeatNumber").Int()
		if !ok {
			continue
		}
		life, ok := p.Get("lifeTotal").Int()
		if !ok {
			continue
		}
		prev, seen := st.Life[seat]
		st.Life[seat] = life
		if !seen || prev == life {
			continue
		}
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindLifeChange,
			Timestamp: ts,
			Player:    seat,
			LifeFrom:  prev,
			LifeTo:    life,
			LifeDelta: life - prev,
		})
	}
}

// applyAnnotations walks the upstream annotations list in payload order.
func (c *Classifier) applyAnnotations(anns payload.Value, ts time.Time, st *State, res *Result) {
	for _, a := range anns.Arr() {
		for _, typ := range a.Get("type").Arr() {
			switch typ.StrOr("") {
			case annZoneTransfer:
				c.applyZoneTransfer(a, ts, st, res)
			case annObjectIDChanged:
				c.applyObjectIDChanged(a, st)
			case annDamageDealt:
				c.applyDamage(a, ts, res)
			case annTappedUntapped:
				c.applyTapState(a, ts, st, res)
			case annRemovedFromGame:
				c.applyRemoval(a, ts, st, res)
			case annAbilityDeleted:
				c.applyAbilityDeleted(a, ts, res)
			}
		}
	}
}

func (c *Classifier) applyZoneTransfer(a payload.Value, ts time.Time, st *State, res *Result) {
	details := detailMap(a.Get("details"))
	affected := a.Get("affectedIds").IntsOf()
	if len(affected) == 0 {
		return
	}

	srcZone := st.ZoneName(atoiOr(details["zone_src"], 0))
	to := st.ZoneName(atoiOr(details["zone_dest"], 0))
	cause := details["category"]

	for _, id := range affected {
		// Delta first: the object record moves, identity intact.
		obj := st.upsertObject(id, 0, 0, 0, 0, "")
		from := srcZone
		if from == "" {
			// Missing source detail: fall back to where this object was.
			from = obj.Zone
		}
		if to != "" {
			obj.Zone = to
		}
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindZoneTransfer,
			Timestamp: ts,
			ObjectID:  id,
			CardName:  obj.Name,
			FromZone:  from,
			ToZone:    to,
			Cause:     cause,
		})
	}
}

// applyObjectIDChanged preserves object identity across transformation.
// No annotation: nothing user-visible happened.
func (c *Classifier) applyObjectIDChanged(a payload.Value, st *State) {
	details := detailMap(a.Get("details"))
	origID := atoiOr(details["orig_id"], 0)
	newID := atoiOr(details["new_id"], 0)
	if origID == 0 || newID == 0 || origID == newID {
		return
	}
	st.renameObject(origID, newID)
}

func (c *Classifier) applyDamage(a payload.Value, ts time.Time, res *Result) {
	details := detailMap(a.Get("details"))
	damage := atoiOr(details["damage"], 0)
	attacker := a.Get("affectorId").IntOr(0)
	for _, id := range a.Get("affectedIds").IntsOf() {
		res.Annotations = append(res.Annotations, Annotation{
			Kind:       KindCombat,
			Timestamp:  ts,
			ObjectID:   id,
			AttackerID: attacker,
			Damage:     damage,
		})
	}
}

func (c *Classifier) applyTapState(a payload.Value, ts time.Time, st *State, res *Result) {
	tapped := detailMap(a.Get("details"))["tapped"] == "1"
	for _, id := range a.Get("affectedIds").IntsOf() {
		obj := st.Object(id)
		if obj == nil {
			continue
		}
		obj.Tapped = tapped
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindPermanentStateChange,
			Timestamp: ts,
			ObjectID:  id,
			CardName:  obj.Name,
			Tapped:    tapped,
		})
	}
}

func (c *Classifier) applyRemoval(a payload.Value, ts time.Time, st *State, res *Result) {
	for _, id := range a.Get("affectedIds").IntsOf() {
		obj := st.removeObject(id)
		name := ""
		if obj != nil {
			name = obj.Name
		}
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindObjectRemoval,
			Timestamp: ts,
			ObjectID:  id,
			CardName:  name,
		})
	}
}

func (c *Classifier) applyAbilityDeleted(a payload.Value, ts time.Time, res *Result) {
	for _, id := range a.Get("affectedIds").IntsOf() {
		res.Annotations = append(res.Annotations, Annotation{
			Kind:      KindEffectExpiration,
			Timestamp: ts,
			ObjectID:  id,
		})
	}
}

// detailMap flattens an upstream details list ({key, valueInt32/valueString}
// pairs) into a string map.
func detailMap(details payload.Value) map[string]string {
	out := make(map[string]string)
	for _, d := range details.Arr() {
		key, ok := d.Get("key").Str()
		if !ok {
			continue
		}
		if s, ok := d.Get("valueString").Str(); ok {
			out[key] = s
			continue
		}
		if n, ok := d.Get("valueInt32").At(0).Int(); ok {
			out[key] = strconv.Itoa(n)
			continue
		}
		if n, ok := d.Get("valueInt32").Int(); ok {
			out[key] = strconv.Itoa(n)
		}
	}
	return out
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
