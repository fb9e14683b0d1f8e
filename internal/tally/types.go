// Package tally sums ballot records per hierarchy level and derives
// participation and candidate shares.
package tally

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Level selects the grouping of a rollup.
type Level string

const (
	LevelDepartment Level = "department"
	LevelCommune    Level = "commune"
	LevelDistrict   Level = "district"
	LevelVillage    Level = "village"
	LevelCenter     Level = "center"
	LevelStation    Level = "station"
	// LevelAgent is the flat one-row-per-record listing.
	LevelAgent Level = "agent"
)

var levelAliases = map[string]Level{
	"":               LevelDepartment,
	"departement":    LevelDepartment,
	"arrondissement": LevelDistrict,
	"centre":         LevelCenter,
	"bureau":         LevelStation,
}

// ParseLevel accepts the canonical names and the French ones the collection
// form has always used.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if l, ok := levelAliases[s]; ok {
		return l, nil
	}
	l := Level(s)
	switch l {
	case LevelDepartment, LevelCommune, LevelDistrict, LevelVillage, LevelCenter, LevelStation, LevelAgent:
		return l, nil
	}
	return "", fmt.Errorf("invalid level %q", s)
}

// Percent is a percentage rounded to two decimals. It encodes as a string
// such as "42.50".
type Percent float64

// Ratio returns part/whole*100, or 0 when whole is 0.
func Ratio(part, whole int64) Percent {
	if whole <= 0 {
		return 0
	}
	return Percent(math.Round(float64(part)/float64(whole)*10000) / 100)
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64)
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts the quoted form MarshalJSON writes, or a bare number.
func (p *Percent) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %s: %w", data, err)
	}
	*p = Percent(f)
	return nil
}

// Totals are the seven summed ballot fields.
type Totals struct {
	RegisteredVoters int64 `json:"registeredVoters" gorm:"column:registered_voters"`
	Voters           int64 `json:"voters" gorm:"column:voters"`
	NullBallots      int64 `json:"nullBallots" gorm:"column:null_ballots"`
	BlankBallots     int64 `json:"blankBallots" gorm:"column:blank_ballots"`
	ValidBallots     int64 `json:"validBallots" gorm:"column:valid_ballots"`
	CandidateAVotes  int64 `json:"candidateAVotes" gorm:"column:candidate_a_votes"`
	CandidateBVotes  int64 `json:"candidateBVotes" gorm:"column:candidate_b_votes"`
}

// Votes is the denominator of the candidate shares.
func (t Totals) Votes() int64 { return t.CandidateAVotes + t.CandidateBVotes }

func (t Totals) Participation() Percent { return Ratio(t.Voters, t.RegisteredVoters) }

// Add accumulates o into t.
func (t *Totals) Add(o Totals) {
	t.RegisteredVoters += o.RegisteredVoters
	t.Voters += o.Voters
	t.NullBallots += o.NullBallots
	t.BlankBallots += o.BlankBallots
	t.ValidBallots += o.ValidBallots
	t.CandidateAVotes += o.CandidateAVotes
	t.CandidateBVotes += o.CandidateBVotes
}

// PairShare is one candidate pair's total and share of the two-way vote.
type PairShare struct {
	ID         uint    `json:"id"`
	Label      string  `json:"label"`
	Total      int64   `json:"total"`
	Percentage Percent `json:"percentage"`
}

// National is the unfiltered country-wide summary.
type National struct {
	Totals
	ParticipationRate Percent     `json:"participationRate"`
	TotalVotes        int64       `json:"totalVotes"`
	ByPair            []PairShare `json:"byPair"`
}

// Row is one group of a rollup. Ancestor names are set for the levels above
// the grouping level.
type Row struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Commune    string `json:"commune,omitempty"`
	District   string `json:"district,omitempty"`
	Village    string `json:"village,omitempty"`
	Center     string `json:"center,omitempty"`
	Totals
	ParticipationRate    Percent `json:"participationRate"`
	CandidateAPercentage Percent `json:"candidateAPercentage"`
	CandidateBPercentage Percent `json:"candidateBPercentage"`
}

// AgentRow is one ballot record with its place names.
type AgentRow struct {
	ID            uint      `json:"id"`
	AgentFullName string    `json:"agentFullName"`
	CreatedAt     time.Time `json:"createdAt"`
	Department    string    `json:"department"`
	Commune       string    `json:"commune"`
	District      string    `json:"district"`
	Village       string    `json:"village"`
	Center        string    `json:"center"`
	Station       string    `json:"station"`
	Totals
	Observations      string  `json:"observations,omitempty"`
	ParticipationRate Percent `json:"participationRate"`
}

// Table is the response of a level query: rollup rows, or agent rows for
// LevelAgent.
type Table struct {
	Level Level       `json:"level"`
	Rows  interface{} `json:"rows"`
	Count int         `json:"count"`
}

// Snapshot is what the live feed pushes on every tick.
type Snapshot struct {
	National    *National  `json:"national"`
	Level       Level      `json:"level"`
	Rows        []Row      `json:"rows"`
	Recent      []AgentRow `json:"recent"`
	GeneratedAt time.Time  `json:"generatedAt"`
}
