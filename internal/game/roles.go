package game

import (
	"math/rand"
	"sync"

	"github.com/tabletrouble/spyx-backend/internal"
)

// RoleEngine partitions a roster into one Spy and role-holders for a
// chosen location. The randomness source is injected so a fixed seed
// reproduces an assignment exactly.
type RoleEngine struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRoleEngine(src rand.Source) *RoleEngine {
	return &RoleEngine{rnd: rand.New(src)}
}

// Assign returns a fresh roster with this round's roles: one player is
// chosen uniformly at random as the Spy, the rest receive distinct roles
// drawn without replacement from a uniform permutation of availableRoles,
// walked in existing roster order. Players left over once roles run out
// get the placeholder role but still share the location. The Spy's
// location is cleared. Re-assignment fully replaces prior role and
// location fields.
//
// Returns a ValidationError, with no mutation applied, when the roster is
// empty or the location's role catalog is empty.
func (e *RoleEngine) Assign(players []internal.Player, location internal.Location, availableRoles []string) ([]internal.Player, error) {
	if len(players) == 0 {
		return nil, &internal.ValidationError{
			Field:  "players",
			Reason: "cannot assign roles to an empty room",
		}
	}
	if len(availableRoles) == 0 {
		return nil, &internal.ValidationError{
			Field:  "roles",
			Reason: "no roles available for the chosen location",
		}
	}

	e.mu.Lock()
	spyIndex := e.rnd.Intn(len(players))
	order := e.rnd.Perm(len(availableRoles))
	e.mu.Unlock()

	updated := make([]internal.Player, len(players))
	copy(updated, players)

	next := 0
	for i := range updated {
		if i == spyIndex {
			updated[i].Role = internal.SpyRole
			updated[i].Location = nil
			continue
		}
		if next < len(order) {
			updated[i].Role = availableRoles[order[next]]
			next++
		} else {
			updated[i].Role = internal.PlaceholderRole
		}
		loc := location
		updated[i].Location = &loc
	}

	return updated, nil
}

// PickLocation draws the round's common location uniformly at random.
func (e *RoleEngine) PickLocation(locations []internal.Location) internal.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return locations[e.rnd.Intn(len(locations))]
}

// ShufflePlayers returns a uniform-random permutation of the roster.
func (e *RoleEngine) ShufflePlayers(players []internal.Player) []internal.Player {
	out := make([]internal.Player, len(players))
	copy(out, players)

	e.mu.Lock()
	e.rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	e.mu.Unlock()
	return out
}

// GenerateGameCode produces a 4-character uppercase room code.
func (e *RoleEngine) GenerateGameCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	code := make([]byte, internal.GameCodeLength)
	for i := range code {
		code[i] = internal.GameCodeChars[e.rnd.Intn(len(internal.GameCodeChars))]
	}
	return string(code)
}
