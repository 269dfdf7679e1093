package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in-progress"
	TournamentCompleted    TournamentStatus = "completed"
)

type TournamentMode string

const (
	Singles TournamentMode = "singles"
	Doubles TournamentMode = "doubles"
)

// TournamentShape picks the advancement policy. It is fixed when the tournament is created.
type TournamentShape string

const (
	SingleEliminationDouble TournamentShape = "single_elimination_double"
	RoundRobinToPlayoff     TournamentShape = "round_robin_playoff"
)

func (s TournamentShape) Valid() bool {
	return s == SingleEliminationDouble || s == RoundRobinToPlayoff
}

type BracketingMethod string

const (
	RandomBracketing BracketingMethod = "random"
	ManualBracketing BracketingMethod = "manual"
)

const (
	// BracketParticipants is the field size of the single elimination shape.
	BracketParticipants = 8
	// PartitionSize is the number of seeds per partition.
	PartitionSize = 4

	MinGroupSize = 2
	MaxGroupSize = 4

	// Direct advancement stops at the last round of the single elimination layout.
	SingleEliminationFinalRound = 3
	RoundRobinPlayoffRound      = 2
	// ChampionRound holds the single match that decides a partition in both shapes.
	// With four seeds per partition the semifinal winner is the champion, and the
	// round 3 match only ever receives that winner.
	ChampionRound = 2
)

type Tournament struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	OwnerID             *uuid.UUID       `db:"owner_id" json:"ownerId,omitempty"`
	Name                string           `db:"name" json:"name"`
	Mode                TournamentMode   `db:"mode" json:"mode"`
	Status              TournamentStatus `db:"status" json:"status"`
	Shape               TournamentShape  `db:"shape" json:"shape"`
	BracketingMethod    BracketingMethod `db:"bracketing_method" json:"bracketingMethod"`
	SeedingCompleted    bool             `db:"seeding_completed" json:"seedingCompleted"`
	CurrentParticipants int              `db:"current_participants" json:"currentParticipants"`
	GroupA              Roster           `db:"group_a" json:"groupA"`
	GroupB              Roster           `db:"group_b" json:"groupB"`
	WinnersChampion     *string          `db:"winners_champion" json:"winnersChampion,omitempty"`
	ConsolationChampion *string          `db:"consolation_champion" json:"consolationChampion,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"createdAt"`
}

func (t *Tournament) HasGroups() bool {
	return len(t.GroupA) > 0 && len(t.GroupB) > 0
}

// GroupSize is the per-group roster size, or 0 when groups are not configured.
func (t *Tournament) GroupSize() int {
	if !t.HasGroups() {
		return 0
	}
	return len(t.GroupA)
}
