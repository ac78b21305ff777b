// Package engine drives a game session from roster assignment to the win
// announcement: the night and day pipelines, the timed action broker and
// the background chat relays.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/game"
	"github.com/wolfden-games/wolfden-server/internal/platform/config"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// ProgressionStore is the read surface of the per-role progression data.
// It is consulted once at session start for the advanced-variant gate.
type ProgressionStore interface {
	GetLevel(actorID string, r role.Role) (int, error)
	RecordWin(actorID string, r role.Role) error
}

// Participant is one joining player, supplied by the hosting layer.
type Participant struct {
	ID   string
	Name string
}

// Session runs one game from start to finish. All mutation of the Game
// aggregate happens on the session's own goroutine; pipeline stages fan
// out solicitations but join them before the next stage begins.
type Session struct {
	ID   string
	Room string
	G    *game.Game

	cfg         *config.Config
	ch          comms.Channel
	broker      *Broker
	log         *logger.Logger
	Events      *events.EventLog
	progression ProgressionStore
	rng         *rand.Rand

	nightRelays []*Relay

	// mayorID is set once the mayor reveals; only their nominations count.
	mayorID string
	// judgePhrase is the secret second-election trigger, told to the judge
	// at setup.
	judgePhrase string

	// requested holds the explicit role list for custom games, empty
	// otherwise.
	requested []role.Role
}

// NewSession wires a session for one room.
func NewSession(room string, mode role.Mode, requested []role.Role, cfg *config.Config,
	ch comms.Channel, log *logger.Logger, ev *events.EventLog, ps ProgressionStore, rng *rand.Rand) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Room:        room,
		G:           game.New(uuid.NewString(), mode),
		cfg:         cfg,
		ch:          ch,
		log:         log,
		Events:      ev,
		progression: ps,
		rng:         rng,
		requested:   requested,
	}
	s.broker = NewBroker(ch, log)
	return s
}

// Join adds a participant to the lobby roster.
func (s *Session) Join(p Participant) error {
	if s.G.Phase != game.PhaseLobby {
		return fmt.Errorf("game in room %s already started", s.Room)
	}
	if s.G.PlayerByID(p.ID) != nil {
		return fmt.Errorf("player %s already joined", p.Name)
	}
	s.G.Players = append(s.G.Players, player.New(p.ID, p.Name, role.Villager))
	return nil
}

// Run plays the whole game. It never panics outward: a stage panic is
// surfaced to the players, the relays are joined and the session ends
// cleanly.
func (s *Session) Run(ctx context.Context) {
	metrics.Get().RecordSessionStart()
	defer metrics.Get().RecordSessionEnd()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Sprintf("session %s crashed: %v", s.ID, r))
			s.Events.Append(events.GameEvent{
				SessionID: s.ID, Type: events.EventTypeSessionError,
				Payload: fmt.Sprint(r), Round: s.G.Round,
			})
			_ = s.ch.Broadcast("The game has ended due to an internal error.")
		}
		s.stopNightRelays()
		s.G.Phase = game.PhaseFinished
	}()

	if err := s.setup(ctx); err != nil {
		s.log.Error(fmt.Sprintf("session %s setup failed: %v", s.ID, err))
		_ = s.ch.Broadcast("The game could not be started: " + err.Error())
		return
	}

	for s.G.Phase != game.PhaseFinished {
		select {
		case <-ctx.Done():
			return
		default:
		}
		deaths := s.RunNight(ctx)
		if s.checkWin() {
			break
		}
		s.RunDay(ctx, deaths)
		if s.checkWin() {
			break
		}
	}
}

// setup assigns the roster and runs the first-night one-time choices: the
// thief's card pick, advanced variants, cupid's arrow and the head
// hunter's mark.
func (s *Session) setup(ctx context.Context) error {
	n := len(s.G.Players)
	slate, err := game.BuildRoster(n, s.G.Mode, s.requested, s.rng)
	if err != nil {
		return err
	}
	playable := append([]role.Role(nil), slate[:n]...)
	s.rng.Shuffle(n, func(i, j int) { playable[i], playable[j] = playable[j], playable[i] })
	s.G.Reserve = slate[n:]

	for i, p := range s.G.Players {
		fresh := player.New(p.ID, p.Name, playable[i])
		s.G.Players[i] = fresh
		info, _ := role.Get(playable[i])
		_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You are the %s. %s", playable[i], info.Description))
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeRoleAssigned,
			TargetID: p.ID, Payload: string(playable[i]),
		})
	}

	s.offerAdvancedVariants(ctx)
	s.thiefChoice(ctx)
	s.introduceGroups()
	s.cupidChoice(ctx)
	s.assignHuntTargets()
	s.dealJudgePhrase()

	s.log.Event("SESSION_STARTED", s.ID, fmt.Sprintf("room=%s players=%d mode=%s", s.Room, n, s.G.Mode))
	return nil
}

// offerAdvancedVariants lets experienced players upgrade their base role.
func (s *Session) offerAdvancedVariants(ctx context.Context) {
	if s.progression == nil {
		return
	}
	for _, p := range s.G.Players {
		info, ok := role.Get(p.Role())
		if !ok || info.Advanced == "" {
			continue
		}
		level, err := s.progression.GetLevel(p.ID, p.Role())
		if err != nil || level < info.MinLevel {
			continue
		}
		if s.broker.Confirm(ctx, p, fmt.Sprintf("Your experience allows you to play the %s instead. Upgrade?", info.Advanced), s.cfg.VoteTimeout) {
			p.SetRole(info.Advanced)
			adv, _ := role.Get(info.Advanced)
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You are now the %s. %s", info.Advanced, adv.Description))
		}
	}
}

// thiefChoice lets the thief swap their card for one of the two reserve
// cards before the first night.
func (s *Session) thiefChoice(ctx context.Context) {
	for _, p := range s.G.AliveWithRole(role.Thief) {
		if len(s.G.Reserve) < 2 {
			return
		}
		msg := fmt.Sprintf("Two cards lie face down. Take one?\n1. %s\n2. %s\nReply 0 to keep your own.", s.G.Reserve[0], s.G.Reserve[1])
		if err := s.ch.SendToActor(p.ID, msg); err != nil {
			return
		}
		tctx, cancel := context.WithTimeout(ctx, s.cfg.NightActionTimeout)
		in, err := s.ch.NextMessage(tctx, func(m comms.Inbound) bool { return m.ActorID == p.ID })
		cancel()
		if err != nil {
			return
		}
		pick, err := strconv.Atoi(strings.TrimSpace(in.Text))
		if err != nil || pick < 1 || pick > 2 {
			return
		}
		stolen := s.G.Reserve[pick-1]
		s.G.Reserve[pick-1] = role.Thief
		p.SetRole(stolen)
		info, _ := role.Get(stolen)
		_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You slip the card into your sleeve. You are the %s. %s", stolen, info.Description))
	}
}

// introduceGroups tells the wolves and the masons who their companions are.
func (s *Session) introduceGroups() {
	bloc := s.G.WolfBloc()
	if len(bloc) > 1 {
		var names []string
		var ids []string
		for _, w := range bloc {
			names = append(names, w.Name)
			ids = append(ids, w.ID)
		}
		_ = s.ch.SendToGroup(ids, "The pack: "+strings.Join(names, ", "))
	}
	masons := s.G.AliveWithRole(role.Mason)
	if len(masons) > 1 {
		var names []string
		var ids []string
		for _, m := range masons {
			names = append(names, m.Name)
			ids = append(ids, m.ID)
		}
		_ = s.ch.SendToGroup(ids, "Your lodge brothers: "+strings.Join(names, ", "))
	}
}

// cupidChoice binds the first-night lovers.
func (s *Session) cupidChoice(ctx context.Context) {
	for _, p := range s.G.AliveWithRole(role.Cupid) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose two players to bind as lovers.",
			Candidates: s.G.Alive(), Count: 2, AllowSelf: true,
			Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) == 2 {
			a, b := sel.Targets[0], sel.Targets[1]
			s.G.AddLovers(a.ID, b.ID)
			_ = s.ch.SendToActor(a.ID, fmt.Sprintf("Cupid's arrow strikes: you are hopelessly in love with %s.", b.Name))
			_ = s.ch.SendToActor(b.ID, fmt.Sprintf("Cupid's arrow strikes: you are hopelessly in love with %s.", a.Name))
		}
	}
}

// assignHuntTargets gives each head hunter a random mark.
func (s *Session) assignHuntTargets() {
	for _, p := range s.G.AliveWithRole(role.HeadHunter) {
		others := s.othersOf(p)
		if len(others) == 0 {
			continue
		}
		mark := others[s.rng.Intn(len(others))]
		p.HuntTarget = mark.ID
		_ = s.ch.SendToActor(p.ID, fmt.Sprintf("Your mark is %s. Get the village to lynch them and the game is yours.", mark.Name))
	}
}

var judgePhrases = []string{
	"justice never sleeps",
	"the gavel falls twice",
	"let the scales decide",
	"order in the square",
}

// dealJudgePhrase tells the judge their secret second-election phrase.
func (s *Session) dealJudgePhrase() {
	judges := s.G.AliveWithRole(role.Judge)
	if len(judges) == 0 {
		return
	}
	s.judgePhrase = judgePhrases[s.rng.Intn(len(judgePhrases))]
	for _, j := range judges {
		_ = s.ch.SendToActor(j.ID, fmt.Sprintf("Speak the words '%s' during nominations to force a second election.", s.judgePhrase))
	}
}

// checkWin consults the evaluator and, when the game is over, announces
// the result and records the wins. Returns true once the session finished.
func (s *Session) checkWin() bool {
	if s.G.Phase == game.PhaseFinished {
		return true
	}
	v := game.Evaluate(s.G)
	if !v.Over {
		return false
	}
	s.G.Phase = game.PhaseFinished

	switch {
	case v.Nobody:
		_ = s.ch.Broadcast("No one survives. The village stands empty. Nobody wins.")
	case v.WinnerID != "":
		if w := s.G.PlayerByID(v.WinnerID); w != nil {
			_ = s.ch.Broadcast(fmt.Sprintf("%s wins the game as the %s!", w.Name, w.Role()))
			s.recordWins([]*player.Player{w})
		}
	case len(v.LoverIDs) > 0:
		var names []string
		var winners []*player.Player
		for _, id := range v.LoverIDs {
			if p := s.G.PlayerByID(id); p != nil {
				names = append(names, p.Name)
				winners = append(winners, p)
			}
		}
		_ = s.ch.Broadcast("Love conquers all: " + strings.Join(names, " and ") + " win together!")
		s.recordWins(winners)
	default:
		_ = s.ch.Broadcast(fmt.Sprintf("The game is over. The %s win!", sideLabel(v.Side)))
		s.recordWins(s.G.AliveOnSide(v.Side))
	}

	s.Events.Append(events.GameEvent{
		SessionID: s.ID, Type: events.EventTypeGameEnd,
		Payload: string(v.Side), Round: s.G.Round, Public: true,
	})
	s.log.Event("SESSION_FINISHED", s.ID, fmt.Sprintf("side=%s rounds=%d", v.Side, s.G.Round))
	return true
}

func (s *Session) recordWins(winners []*player.Player) {
	if s.progression == nil {
		return
	}
	for _, w := range winners {
		if err := s.progression.RecordWin(w.ID, w.Role()); err != nil {
			s.log.Warn(fmt.Sprintf("cannot record win for %s: %v", w.Name, err))
		}
	}
}

func (s *Session) finished() bool {
	return s.checkWin()
}

func sideLabel(sd role.Side) string {
	switch sd {
	case role.SideVillagers:
		return "villagers"
	case role.SideWolves:
		return "wolves"
	default:
		return string(sd)
	}
}
