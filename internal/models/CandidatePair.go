package models

// CandidatePair is one of the two competing tickets. Static reference data.
type CandidatePair struct {
	ID    uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Label string `gorm:"size:255;not null" json:"label"`
}

func (CandidatePair) TableName() string { return "candidate_pairs" }

const (
	PairA uint = 1
	PairB uint = 2
)
