package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ParticipantKind string

const (
	PlayerParticipant ParticipantKind = "player"
	TeamParticipant   ParticipantKind = "team"
)

// Participant is a registered player or team. The bracket logic only ever sees its ID.
type Participant struct {
	ID           string          `db:"id" json:"id"`
	TournamentID uuid.UUID       `db:"tournament_id" json:"tournamentId"`
	Kind         ParticipantKind `db:"kind" json:"kind"`
	Name         string          `db:"name" json:"name"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// Assignment places a participant at a seed inside one partition for manual bracketing.
type Assignment struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	TournamentID  uuid.UUID   `db:"tournament_id" json:"tournamentId"`
	ParticipantID string      `db:"participant_id" json:"participantId"`
	BracketType   BracketType `db:"bracket_type" json:"bracketType"`
	Seed          int         `db:"seed" json:"seed"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// Roster is an ordered list of participant ids, stored as a JSON array.
type Roster []string

func (r Roster) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Roster) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("roster: unsupported type %T", src)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("roster: %w", err)
	}
	*r = ids
	return nil
}
