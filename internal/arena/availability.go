package arena

import (
	"sort"
	"time"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// Score is a member's aggregate over finished rounds. A lost round counts as
// MaxGuesses guesses.
type Score struct {
	Completed int
	Wins      int
	Guesses   int
}

// compareScores orders by wins desc, then total guesses asc. A negative result
// means x ranks worse than y.
func compareScores(x, y Score) int {
	switch {
	case x.Wins != y.Wins:
		return x.Wins - y.Wins
	default:
		return y.Guesses - x.Guesses
	}
}

// progress is a member's state across the arena's rounds.
type progress struct {
	Score
	current *game.Game // IN_PROGRESS round, if any
}

func progressOf(games []*game.Game) progress {
	var p progress
	for _, g := range games {
		switch g.Status {
		case game.StatusWon:
			p.Completed++
			p.Wins++
			p.Guesses += g.GuessCount
		case game.StatusLost:
			p.Completed++
			p.Guesses += game.MaxGuesses
		default:
			if p.current == nil || (g.ArenaWordIndex != nil && p.current.ArenaWordIndex != nil && *g.ArenaWordIndex < *p.current.ArenaWordIndex) {
				p.current = g
			}
		}
	}
	return p
}

// groupByMember splits arena games by owner.
func groupByMember(games []*game.Game) map[game.UserKey][]*game.Game {
	out := make(map[game.UserKey][]*game.Game)
	for _, g := range games {
		out[g.UserKey] = append(out[g.UserKey], g)
	}
	return out
}

// FreeSlots is the number of slots neither taken by an active member nor
// reserved for an invited audience member who has not joined yet.
func FreeSlots(a *Arena) int {
	taken := len(a.ActiveMembers())
	for _, am := range a.Config.Audience {
		if a.memberIndex(am.Key()) < 0 {
			taken++
		}
	}
	if free := a.Config.AudienceSize - taken; free > 0 {
		return free
	}
	return 0
}

// MembershipOf derives the relation between k and a.
func MembershipOf(a *Arena, k game.UserKey) Membership {
	if i := a.memberIndex(k); i >= 0 {
		switch {
		case a.Members[i].KickedAt != nil:
			return MembershipMemberKicked
		case FreeSlots(a) > 0:
			return MembershipMemberFreeSlot
		default:
			return MembershipMember
		}
	}
	if a.inAudience(k) {
		return MembershipAudience
	}
	if FreeSlots(a) > 0 {
		return MembershipFreeSlot
	}
	return MembershipNotMember
}

// effectiveStart is StartedAt, or the scheduled date once it has passed.
func effectiveStart(a *Arena, now time.Time) *time.Time {
	if a.StartedAt != nil {
		return a.StartedAt
	}
	if a.Config.Start.Type == StartScheduled && a.Config.Start.Date != nil && !now.Before(*a.Config.Start.Date) {
		return a.Config.Start.Date
	}
	return nil
}

// SuddenDeathOver reports whether a two-player sudden-death arena is already
// decided: the trailing player cannot catch up even by winning every remaining
// round in one guess while the leader loses every remaining round. A possible
// tie keeps the arena going.
func SuddenDeathOver(a *Arena, games []*game.Game) bool {
	if !a.Config.SuddenDeath || a.Config.AudienceSize != 2 {
		return false
	}
	active := a.ActiveMembers()
	if len(active) != 2 {
		return false
	}
	byMember := groupByMember(games)
	pa := progressOf(byMember[active[0].Key()]).Score
	pb := progressOf(byMember[active[1].Key()]).Score
	return decided(pa, pb, a.Config.WordCount) || decided(pb, pa, a.Config.WordCount)
}

// decided reports whether trailing can no longer reach leader.
func decided(trailing, leader Score, wordCount int) bool {
	tr := max(wordCount-trailing.Completed, 0)
	lr := max(wordCount-leader.Completed, 0)
	best := Score{Wins: trailing.Wins + tr, Guesses: trailing.Guesses + tr}
	worst := Score{Wins: leader.Wins, Guesses: leader.Guesses + lr*game.MaxGuesses}
	return compareScores(best, worst) < 0
}

// ArenaStatus derives the arena-wide phase at now.
func ArenaStatus(a *Arena, games []*game.Game, now time.Time) Status {
	if a.Config.Start.Type == StartScheduled && a.Config.Start.Date != nil && now.Before(*a.Config.Start.Date) {
		return StatusPending
	}
	if start := effectiveStart(a, now); start != nil && a.Config.Duration.Type == DurationInterval {
		if now.Sub(*start) > time.Duration(a.Config.Duration.Minutes)*time.Minute {
			return StatusEnded
		}
	}
	if allRoundsCompleted(a, games) {
		return StatusEnded
	}
	return StatusOpen
}

func allRoundsCompleted(a *Arena, games []*game.Game) bool {
	active := a.ActiveMembers()
	if len(active) == 0 || len(active) < a.Config.AudienceSize {
		return false
	}
	if SuddenDeathOver(a, games) {
		return true
	}
	byMember := groupByMember(games)
	for _, m := range active {
		if progressOf(byMember[m.Key()]).Completed < a.Config.WordCount {
			return false
		}
	}
	return true
}

// Evaluate derives the full Availability for k in a at now.
func Evaluate(a *Arena, k game.UserKey, games []*game.Game, now time.Time) Availability {
	mine := progressOf(groupByMember(games)[k])
	sdOver := SuddenDeathOver(a, games)
	av := Availability{
		Membership:      MembershipOf(a, k),
		Status:          ArenaStatus(a, games, now),
		CompletedRounds: mine.Completed,
		SuddenDeathOver: sdOver,
		FreeSlots:       FreeSlots(a),
	}
	switch {
	case mine.Completed >= a.Config.WordCount || (sdOver && mine.current == nil):
		av.CompletionStatus = CompletionCompleted
	case mine.Completed == 0 && mine.current == nil:
		av.CompletionStatus = CompletionNotStarted
	default:
		av.CompletionStatus = CompletionInProgress
	}
	av.HasNextGame = av.Membership.IsMember() && av.Status == StatusOpen && hasNextGame(a, mine, sdOver)
	return av
}

func hasNextGame(a *Arena, p progress, sdOver bool) bool {
	if p.current != nil {
		return true
	}
	return !sdOver && p.Completed < a.Config.WordCount
}

// Standings ranks active members by wins desc, then total guesses asc. Ties
// share a rank and the next rank skips.
func Standings(a *Arena, games []*game.Game) []Standing {
	byMember := groupByMember(games)
	out := make([]Standing, 0, len(a.Members))
	for _, m := range a.ActiveMembers() {
		p := progressOf(byMember[m.Key()])
		out = append(out, Standing{Member: m, Completed: p.Completed, Wins: p.Wins, Guesses: p.Guesses})
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareScores(scoreOf(out[i]), scoreOf(out[j]))
		if c != 0 {
			return c > 0
		}
		return out[i].Member.JoinedAt.Before(out[j].Member.JoinedAt)
	})
	for i := range out {
		if i > 0 && compareScores(scoreOf(out[i]), scoreOf(out[i-1])) == 0 {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

func scoreOf(s Standing) Score {
	return Score{Completed: s.Completed, Wins: s.Wins, Guesses: s.Guesses}
}
