// internal/game/game.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gomoku/engine"
	"github.com/jason-s-yu/gomoku/internal/cache"
	"github.com/sirupsen/logrus"
)

// GameEventType names an event emitted to the presentation layer.
type GameEventType string

const (
	EventUIState      GameEventType = "ui-state"      // Turn, current player, cooldowns, transient message.
	EventUIFeedback   GameEventType = "ui-feedback"   // Result of the last skill command.
	EventGameOver     GameEventType = "game-over"     // Winner decided.
	EventStateChanged GameEventType = "state-changed" // Full snapshot after any command that changed it.
	EventGameRestart  GameEventType = "game-restart"  // Board reset.
)

// Result is the outcome of a command. Failures are always recoverable.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// SkillView describes one skill for the sidebar.
type SkillView struct {
	ID          engine.SkillID        `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Cooldown    engine.PerPlayer[int] `json:"cooldown"`
	Ready       bool                  `json:"ready"` // Usable by the current player right now.
}

// UIState is the payload of EventUIState.
type UIState struct {
	Turn          int           `json:"turn"`
	CurrentPlayer engine.Player `json:"currentPlayer"`
	Skills        []SkillView   `json:"skills"`
	Message       string        `json:"message,omitempty"`
	Pending       string        `json:"pending,omitempty"`     // Armed interaction, if any.
	DropsLeft     int           `json:"dropsLeft,omitempty"`   // Water-drop targets still to choose.
	SweepAnchor   *engine.Point `json:"sweepAnchor,omitempty"` // Set while choosing a sweep direction.
	GameOver      bool          `json:"gameOver"`
	Winner        engine.Player `json:"winner,omitempty"`
}

// GameEvent is the envelope for everything a Session emits.
type GameEvent struct {
	Type     GameEventType    `json:"type"`
	Actor    engine.Player    `json:"actor,omitempty"` // Seat whose command produced the event.
	UI       *UIState         `json:"ui,omitempty"`
	Result   *Result          `json:"result,omitempty"`
	Skill    engine.SkillID   `json:"skill,omitempty"`
	Winner   engine.Player    `json:"winner,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

// Session owns one local game and serializes every command against it.
type Session struct {
	ID     uuid.UUID
	Engine engine.GameState // Authoritative local state.
	Mu     sync.Mutex       // Guards Engine and the fields below.

	// BroadcastFn receives every event. Called with Mu held.
	BroadcastFn func(ev GameEvent)
	// OnStateChanged receives the snapshot after every command that changed
	// it (placements, skill activations, water-drop picks, restarts) and the
	// seat that issued the command. Not called for remote loads. Called with
	// Mu held.
	OnStateChanged func(snap engine.Snapshot, actor engine.Player)

	loading     bool
	actionIndex int
	log         *logrus.Entry
}

// turnMark captures the state before a command. hash covers every
// snapshot-visible field, so any change to it is worth publishing.
type turnMark struct {
	over bool
	hash uint64
}

// NewSession creates a session with a fresh game.
func NewSession(rules engine.Rules) *Session {
	id := uuid.New()
	return &Session{
		ID:     id,
		Engine: engine.NewGame(uint64(time.Now().UnixNano()), rules),
		log:    logrus.WithField("game", id.String()),
	}
}

// Place handles a board click.
func (s *Session) Place(x, y int) Result {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	before := s.mark()
	actor := s.Engine.CurrentPlayer
	if err := s.Engine.Place(x, y); err != nil {
		s.log.WithError(err).Debugf("place (%d,%d) by %v rejected", x, y, actor)
		if errors.Is(err, engine.ErrForcedBorder) {
			s.emitUIState()
		}
		return Result{OK: false, Message: err.Error()}
	}
	s.logAction(actor, "place", map[string]interface{}{"x": x, "y": y})
	s.afterCommand(actor, before)
	return Result{OK: true, Message: s.Engine.Message}
}

// UseSkill activates a skill for the current player.
func (s *Session) UseSkill(id engine.SkillID) Result {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	before := s.mark()
	actor := s.Engine.CurrentPlayer
	if err := s.Engine.UseSkill(id); err != nil {
		s.log.WithError(err).Debugf("skill %s by %v rejected", id, actor)
		res := Result{OK: false, Message: err.Error()}
		s.fireEvent(GameEvent{Type: EventUIFeedback, Actor: actor, Skill: id, Result: &res})
		return res
	}

	msg := s.Engine.Message
	if msg == "" {
		if sk, ok := s.Engine.Skills.Lookup(id); ok {
			msg = sk.Name + " activated"
		}
	}
	res := Result{OK: true, Message: msg}
	s.logAction(actor, "skill", map[string]interface{}{"skill": string(id)})
	s.fireEvent(GameEvent{Type: EventUIFeedback, Actor: actor, Skill: id, Result: &res})
	s.afterCommand(actor, before)
	return res
}

// ChooseSweepDirection resolves a clean-sweep waiting on its direction menu.
func (s *Session) ChooseSweepDirection(d engine.SweepDirection) Result {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	before := s.mark()
	actor := s.Engine.CurrentPlayer
	if err := s.Engine.ChooseSweepDirection(d); err != nil {
		return Result{OK: false, Message: err.Error()}
	}
	s.logAction(actor, "sweep", map[string]interface{}{"direction": d.String()})
	s.afterCommand(actor, before)
	return Result{OK: true}
}

// CancelInteraction disarms a pending skill interaction.
func (s *Session) CancelInteraction() Result {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := s.Engine.CancelInteraction(); err != nil {
		return Result{OK: false, Message: err.Error()}
	}
	s.emitUIState()
	return Result{OK: true}
}

// Restart resets the game. by is the seat that asked for it, or engine.None
// for a local hot-seat game.
func (s *Session) Restart(by engine.Player) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	s.Engine.Restart()
	s.logAction(by, "restart", nil)
	s.fireEvent(GameEvent{Type: EventGameRestart, Actor: by})
	s.emitUIState()
	s.stateChanged(by)
}

// LoadRemoteState replaces the local state with a serialized snapshot. A
// malformed document is rejected and the current state is kept. No
// state-changed event is emitted for a load.
func (s *Session) LoadRemoteState(data json.RawMessage) error {
	return s.LoadRemoteStateIf(data, nil)
}

// LoadRemoteStateIf is LoadRemoteState guarded by cond; see LoadStateIf.
func (s *Session) LoadRemoteStateIf(data json.RawMessage, cond func() bool) error {
	snap, err := engine.ParseSnapshot(data)
	if err != nil {
		s.log.WithError(err).Warn("ignoring malformed remote state")
		return err
	}
	return s.LoadStateIf(snap, cond)
}

// LoadState is LoadRemoteState for an already decoded snapshot. A snapshot
// equal to the current state is a no-op and emits nothing.
func (s *Session) LoadState(snap engine.Snapshot) error {
	return s.LoadStateIf(snap, nil)
}

// LoadStateIf loads snap only if cond, evaluated with Mu held after the
// snapshot validated and before anything changes, returns true. A nil cond
// always loads.
func (s *Session) LoadStateIf(snap engine.Snapshot, cond func() bool) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	s.loading = true
	defer func() { s.loading = false }()

	next := s.Engine.Clone()
	if err := next.LoadSnapshot(snap); err != nil {
		s.log.WithError(err).Warn("ignoring malformed remote state")
		return err
	}
	if cond != nil && !cond() {
		s.log.Debug("skipping stale remote state")
		return nil
	}
	if next.StateHash() == s.Engine.StateHash() {
		return nil
	}
	wasOver, prevTurn := s.Engine.GameOver, s.Engine.TurnNumber
	if err := s.Engine.LoadSnapshot(snap); err != nil {
		return err
	}
	if s.Engine.TurnNumber == 1 && !s.Engine.GameOver && (wasOver || prevTurn > 1) {
		s.fireEvent(GameEvent{Type: EventGameRestart})
	}
	s.emitUIState()
	if s.Engine.GameOver && !wasOver {
		s.fireEvent(GameEvent{Type: EventGameOver, Winner: s.Engine.Winner})
	}
	return nil
}

// Snapshot returns the current serialized state.
func (s *Session) Snapshot() engine.Snapshot {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Engine.Snapshot()
}

// UIState returns the current sidebar state.
func (s *Session) UIState() UIState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.uiState()
}

// CurrentPlayer returns whose move it is.
func (s *Session) CurrentPlayer() engine.Player {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Engine.CurrentPlayer
}

// LegalPlacements returns the cells a click would currently be accepted on.
func (s *Session) LegalPlacements() []engine.Point {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Engine.LegalPlacements()
}

// afterCommand emits the events that follow a successful command.
// Assumes lock is held by caller.
func (s *Session) afterCommand(actor engine.Player, before turnMark) {
	s.emitUIState()
	after := s.mark()
	if after.over && !before.over {
		s.log.Infof("game over, %v wins", s.Engine.Winner)
		s.logAction(actor, "game_over", map[string]interface{}{"winner": int(s.Engine.Winner)})
		s.fireEvent(GameEvent{Type: EventGameOver, Actor: actor, Winner: s.Engine.Winner})
	}
	if after != before {
		s.stateChanged(actor)
	}
}

// stateChanged emits the snapshot unless a remote load is in progress.
// Assumes lock is held by caller.
func (s *Session) stateChanged(actor engine.Player) {
	if s.loading {
		return
	}
	snap := s.Engine.Snapshot()
	s.fireEvent(GameEvent{Type: EventStateChanged, Actor: actor, Snapshot: &snap})
	if s.OnStateChanged != nil {
		s.OnStateChanged(snap, actor)
	}
}

func (s *Session) mark() turnMark {
	return turnMark{over: s.Engine.GameOver, hash: s.Engine.StateHash()}
}

// Assumes lock is held by caller.
func (s *Session) emitUIState() {
	ui := s.uiState()
	s.fireEvent(GameEvent{Type: EventUIState, UI: &ui})
}

// Assumes lock is held by caller.
func (s *Session) uiState() UIState {
	g := &s.Engine
	ui := UIState{
		Turn:          g.TurnNumber,
		CurrentPlayer: g.CurrentPlayer,
		Message:       g.Message,
		GameOver:      g.GameOver,
	}
	usable := make(map[engine.SkillID]bool)
	for _, id := range g.UsableSkills() {
		usable[id] = true
	}
	for _, sk := range g.Skills.List() {
		var cd engine.PerPlayer[int]
		cd.Set(engine.Black, g.Skills.Remaining(sk.ID, engine.Black))
		cd.Set(engine.White, g.Skills.Remaining(sk.ID, engine.White))
		ui.Skills = append(ui.Skills, SkillView{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
			Cooldown:    cd,
			Ready:       usable[sk.ID],
		})
	}
	if g.Pending.Active() {
		ui.Pending = g.Pending.Type.String()
		ui.DropsLeft = g.Pending.Remaining
		if g.Pending.Type == engine.PendingSweepDirection {
			anchor := g.Pending.Anchor
			ui.SweepAnchor = &anchor
		}
	}
	if g.GameOver {
		ui.Winner = g.Winner
	}
	return ui
}

// fireEvent hands ev to BroadcastFn.
// Assumes lock is held by caller.
func (s *Session) fireEvent(ev GameEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
		return
	}
	s.log.Debugf("BroadcastFn is nil, dropping %s", ev.Type)
}

// logAction sends the action to the historian queue via Redis.
// Assumes lock is held by caller.
func (s *Session) logAction(actor engine.Player, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        s.ID,
		ActionIndex:   s.actionIndex,
		ActorSeat:     int(actor),
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	if cache.Rdb == nil {
		return
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			s.log.WithError(err).Warnf("failed publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}(record)
}
