package models

import "time"

// BallotRecord is one polling station's counts for a single submission.
// All five location ids are stored on the row so rollups can group on them
// directly; they are not derived through the station. Each id is a foreign
// key, so the store refuses a row pointing at a missing place.
type BallotRecord struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	AgentFullName    string `gorm:"size:200;not null" json:"agent_full_name"`
	PollingStationID uint   `gorm:"not null;index" json:"polling_station_id"`
	DepartmentID     uint   `gorm:"not null;index" json:"department_id"`
	CommuneID        uint   `gorm:"not null;index" json:"commune_id"`
	DistrictID       uint   `gorm:"not null;index" json:"district_id"`
	VillageID        uint   `gorm:"not null;index" json:"village_id"`
	CenterID         uint   `gorm:"not null;index" json:"center_id"`
	LeadingPairID    uint   `gorm:"not null" json:"leading_pair_id"`

	RegisteredVoters int64 `gorm:"not null" json:"registered_voters"`
	Voters           int64 `gorm:"not null" json:"voters"`
	NullBallots      int64 `gorm:"not null" json:"null_ballots"`
	BlankBallots     int64 `gorm:"not null" json:"blank_ballots"`
	ValidBallots     int64 `gorm:"not null" json:"valid_ballots"`
	CandidateAVotes  int64 `gorm:"not null" json:"candidate_a_votes"`
	CandidateBVotes  int64 `gorm:"not null" json:"candidate_b_votes"`

	Observations string    `gorm:"type:text" json:"observations"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`

	PollingStation *PollingStation `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Department     *Department     `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Commune        *Commune        `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	District       *District       `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Village        *Village        `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Center         *Center         `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (BallotRecord) TableName() string { return "ballot_records" }

// LeadingPair returns the pair with strictly more votes, defaulting to A on ties.
func LeadingPair(aVotes, bVotes int64) uint {
	if bVotes > aVotes {
		return PairB
	}
	return PairA
}
