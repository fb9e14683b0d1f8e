// Package validation checks ballot-count submissions before anything touches
// the store. It does no I/O and reads no clock.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"tallyboard/internal/models"
)

// Rule identifiers reported in Violation.Rule.
const (
	// input shape
	RuleRequired    = "required"
	RuleType        = "type"
	RuleInteger     = "integer"
	RuleNonNegative = "non_negative"
	RuleRange       = "range"

	// arithmetic consistency
	RuleVotersWithinRegistered = "voters_within_registered"
	RuleValidWithinVoters      = "valid_within_voters"
	RuleNullWithinVoters       = "null_within_voters"
	RuleBlankWithinVoters      = "blank_within_voters"
	RuleBallotSum              = "ballot_sum"
	RuleVoteSum                = "vote_sum"

	// document level
	RuleAgentName        = "agent_name"
	RulePositiveID       = "positive_id"
	RuleStationsRequired = "stations_required"
	RuleStationIndex     = "station_index"
	RuleDuplicateStation = "duplicate_station"
	RuleObservations     = "observations_length"
)

// Field names as they appear on the wire.
const (
	FieldAgentFullName    = "agentFullName"
	FieldDepartmentID     = "departmentId"
	FieldCommuneID        = "communeId"
	FieldDistrictID       = "districtId"
	FieldVillageID        = "villageId"
	FieldCenterID         = "centerId"
	FieldStations         = "stations"
	FieldStationIndex     = "stationIndex"
	FieldRegisteredVoters = "registeredVoters"
	FieldVoters           = "voters"
	FieldNullBallots      = "nullBallots"
	FieldBlankBallots     = "blankBallots"
	FieldValidBallots     = "validBallots"
	FieldCandidateAVotes  = "candidateAVotes"
	FieldCandidateBVotes  = "candidateBVotes"
	FieldObservations     = "observations"
)

// The binding tags below repeat these values.
const (
	MaxAgentNameLength    = 200
	MaxObservationsLength = 1000
	// MaxCount bounds every station count so the rule sums cannot overflow.
	MaxCount = 10_000_000
)

// Document is the submission payload as posted by the collection form.
type Document struct {
	AgentFullName string    `json:"agentFullName" binding:"required,max=200"`
	DepartmentID  Count     `json:"departmentId" binding:"gt=0"`
	CommuneID     Count     `json:"communeId" binding:"gt=0"`
	DistrictID    Count     `json:"districtId" binding:"gt=0"`
	VillageID     Count     `json:"villageId" binding:"gt=0"`
	CenterID      Count     `json:"centerId" binding:"gt=0"`
	Stations      []Station `json:"stations" binding:"required,min=1,dive"`
}

// Station is one polling station's counts inside a Document.
type Station struct {
	StationIndex     Count  `json:"stationIndex" binding:"min=1"`
	RegisteredVoters Count  `json:"registeredVoters" binding:"max=10000000"`
	Voters           Count  `json:"voters" binding:"max=10000000"`
	NullBallots      Count  `json:"nullBallots" binding:"max=10000000"`
	BlankBallots     Count  `json:"blankBallots" binding:"max=10000000"`
	ValidBallots     Count  `json:"validBallots" binding:"max=10000000"`
	CandidateAVotes  Count  `json:"candidateAVotes" binding:"max=10000000"`
	CandidateBVotes  Count  `json:"candidateBVotes" binding:"max=10000000"`
	Observations     string `json:"observations,omitempty" binding:"max=1000"`
}

// Record is a station whose fields all parsed as non-negative integers.
type Record struct {
	StationIndex     int
	RegisteredVoters int64
	Voters           int64
	NullBallots      int64
	BlankBallots     int64
	ValidBallots     int64
	CandidateAVotes  int64
	CandidateBVotes  int64
	Observations     string
}

// Submission is a Document that passed every check.
type Submission struct {
	AgentFullName string
	Location      models.LocationPath
	Records       []Record
}

// Violation is one broken rule. Station is the 0-based position in the
// stations list, nil for document-level problems.
type Violation struct {
	Station *int     `json:"station,omitempty"`
	Rule    string   `json:"rule"`
	Fields  []string `json:"fields"`
	Message string   `json:"message"`
}

// Validate runs the shape, field and arithmetic checks and returns either a
// Submission or every violation found. stationCount is the number of fixed
// polling stations a center carries; valid indexes are 1..stationCount.
func Validate(doc Document, stationCount int) (*Submission, []Violation) {
	doc = normalize(doc)

	violations := shapeViolations(doc)
	violations = append(violations, fieldViolations(doc)...)

	records := make([]Record, 0, len(doc.Stations))
	seen := make(map[int]int, len(doc.Stations))
	for i, st := range doc.Stations {
		pos := i
		rec, ok := st.record()
		if !ok {
			continue
		}

		switch first, dup := seen[rec.StationIndex]; {
		case rec.StationIndex < 1:
			// reported by the min tag
		case rec.StationIndex > stationCount:
			violations = append(violations, Violation{
				Station: &pos,
				Rule:    RuleStationIndex,
				Fields:  []string{FieldStationIndex},
				Message: fmt.Sprintf("stationIndex must be between 1 and %d", stationCount),
			})
		case dup:
			violations = append(violations, Violation{
				Station: &pos,
				Rule:    RuleDuplicateStation,
				Fields:  []string{FieldStationIndex},
				Message: fmt.Sprintf("stationIndex %d already reported at position %d", rec.StationIndex, first),
			})
		default:
			seen[rec.StationIndex] = pos
		}

		for _, v := range CheckRecord(rec) {
			v.Station = &pos
			violations = append(violations, v)
		}
		records = append(records, rec)
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return &Submission{AgentFullName: doc.AgentFullName, Location: doc.location(), Records: records}, nil
}

// normalize sanitizes the free-text fields of a copy before any rule runs.
func normalize(doc Document) Document {
	doc.AgentFullName = SanitizeName(doc.AgentFullName)
	if doc.Stations != nil {
		stations := make([]Station, len(doc.Stations))
		copy(stations, doc.Stations)
		for i := range stations {
			stations[i].Observations = strings.TrimSpace(stations[i].Observations)
		}
		doc.Stations = stations
	}
	return doc
}

type namedCount struct {
	field string
	value Count
}

func (d Document) ids() []namedCount {
	return []namedCount{
		{FieldDepartmentID, d.DepartmentID},
		{FieldCommuneID, d.CommuneID},
		{FieldDistrictID, d.DistrictID},
		{FieldVillageID, d.VillageID},
		{FieldCenterID, d.CenterID},
	}
}

func (d Document) location() models.LocationPath {
	id := func(c Count) uint {
		n, _ := c.value()
		return uint(n)
	}
	return models.LocationPath{
		DepartmentID: id(d.DepartmentID),
		CommuneID:    id(d.CommuneID),
		DistrictID:   id(d.DistrictID),
		VillageID:    id(d.VillageID),
		CenterID:     id(d.CenterID),
	}
}

func (st Station) counts() []namedCount {
	return []namedCount{
		{FieldStationIndex, st.StationIndex},
		{FieldRegisteredVoters, st.RegisteredVoters},
		{FieldVoters, st.Voters},
		{FieldNullBallots, st.NullBallots},
		{FieldBlankBallots, st.BlankBallots},
		{FieldValidBallots, st.ValidBallots},
		{FieldCandidateAVotes, st.CandidateAVotes},
		{FieldCandidateBVotes, st.CandidateBVotes},
	}
}

// record converts the wire fields. ok is false when any count has a shape
// problem; arithmetic rules are not run on such a station.
func (st Station) record() (rec Record, ok bool) {
	var index int64
	dst := map[string]*int64{
		FieldStationIndex:     &index,
		FieldRegisteredVoters: &rec.RegisteredVoters,
		FieldVoters:           &rec.Voters,
		FieldNullBallots:      &rec.NullBallots,
		FieldBlankBallots:     &rec.BlankBallots,
		FieldValidBallots:     &rec.ValidBallots,
		FieldCandidateAVotes:  &rec.CandidateAVotes,
		FieldCandidateBVotes:  &rec.CandidateBVotes,
	}
	for _, f := range st.counts() {
		n, problem := f.value.value()
		if problem != problemNone {
			return Record{}, false
		}
		*dst[f.field] = n
	}
	rec.StationIndex = int(index)
	rec.Observations = st.Observations
	return rec, true
}

// shapeViolations reports the numeric tokens that are missing or do not
// parse as non-negative integers.
func shapeViolations(doc Document) []Violation {
	var out []Violation
	for _, id := range doc.ids() {
		if _, problem := id.value.value(); problem != problemNone {
			out = append(out, shapeViolation(nil, id.field, problem))
		}
	}
	for i, st := range doc.Stations {
		pos := i
		for _, f := range st.counts() {
			if _, problem := f.value.value(); problem != problemNone {
				out = append(out, shapeViolation(&pos, f.field, problem))
			}
		}
	}
	return out
}

var structs = newEngine()

func newEngine() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	Register(v)
	return v
}

// Register teaches v the Count type and the wire field names. gin's binding
// engine needs it before it can bind a Document.
func Register(v *validator.Validate) {
	v.RegisterCustomTypeFunc(countValue, Count{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// fieldViolations runs the binding tags and translates their failures.
func fieldViolations(doc Document) []Violation {
	var errs validator.ValidationErrors
	if !errors.As(structs.Struct(doc), &errs) {
		return nil
	}
	out := make([]Violation, 0, len(errs))
	for _, fe := range errs {
		// a token that did not parse has no value; shapeViolations has it
		if fe.Kind() == reflect.Invalid {
			continue
		}
		out = append(out, fieldViolation(fe))
	}
	return out
}

func fieldViolation(fe validator.FieldError) Violation {
	field := fe.Field()
	v := Violation{Station: stationPosition(fe.Namespace()), Fields: []string{field}}
	switch field {
	case FieldAgentFullName:
		v.Rule = RuleAgentName
		v.Message = "agentFullName is required"
		if fe.Tag() == "max" {
			v.Message = "agentFullName must be at most " + fe.Param() + " characters"
		}
	case FieldStations:
		v.Rule = RuleStationsRequired
		v.Message = "at least one polling station is required"
	case FieldStationIndex:
		v.Rule = RuleStationIndex
		v.Message = "stationIndex must be at least " + fe.Param()
	case FieldObservations:
		v.Rule = RuleObservations
		v.Message = "observations must be at most " + fe.Param() + " characters"
	case FieldDepartmentID, FieldCommuneID, FieldDistrictID, FieldVillageID, FieldCenterID:
		v.Rule = RulePositiveID
		v.Message = field + " must be a positive integer"
	default:
		v.Rule = RuleRange
		v.Message = field + " must be at most " + fe.Param()
	}
	return v
}

// stationPosition extracts i from a namespace such as "Document.stations[i].voters".
func stationPosition(ns string) *int {
	_, rest, found := strings.Cut(ns, FieldStations+"[")
	if !found {
		return nil
	}
	digits, _, found := strings.Cut(rest, "]")
	if !found {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// CheckRecord applies the six arithmetic consistency rules. Every rule is
// evaluated; the result lists all that fail, in rule order.
func CheckRecord(r Record) []Violation {
	var out []Violation
	fail := func(rule, msg string, fields ...string) {
		out = append(out, Violation{Rule: rule, Fields: fields, Message: msg})
	}

	if r.Voters > r.RegisteredVoters {
		fail(RuleVotersWithinRegistered,
			fmt.Sprintf("voters must not exceed registered voters (%d > %d)", r.Voters, r.RegisteredVoters),
			FieldVoters, FieldRegisteredVoters)
	}
	if r.ValidBallots > r.Voters {
		fail(RuleValidWithinVoters,
			fmt.Sprintf("valid ballots must not exceed voters (%d > %d)", r.ValidBallots, r.Voters),
			FieldValidBallots, FieldVoters)
	}
	if r.NullBallots > r.Voters {
		fail(RuleNullWithinVoters,
			fmt.Sprintf("null ballots must not exceed voters (%d > %d)", r.NullBallots, r.Voters),
			FieldNullBallots, FieldVoters)
	}
	if r.BlankBallots > r.Voters {
		fail(RuleBlankWithinVoters,
			fmt.Sprintf("blank ballots must not exceed voters (%d > %d)", r.BlankBallots, r.Voters),
			FieldBlankBallots, FieldVoters)
	}
	if sum := r.ValidBallots + r.NullBallots + r.BlankBallots; r.Voters != sum {
		fail(RuleBallotSum,
			fmt.Sprintf("voters must equal valid + null + blank ballots (%d ≠ %d)", r.Voters, sum),
			FieldVoters, FieldValidBallots, FieldNullBallots, FieldBlankBallots)
	}
	if sum := r.CandidateAVotes + r.CandidateBVotes; r.ValidBallots != sum {
		fail(RuleVoteSum,
			fmt.Sprintf("valid ballots must equal candidate A + candidate B votes (%d ≠ %d)", r.ValidBallots, sum),
			FieldValidBallots, FieldCandidateAVotes, FieldCandidateBVotes)
	}
	return out
}

// SanitizeName trims the agent name, strips angle brackets and caps its length.
func SanitizeName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	if utf8.RuneCountInString(s) > MaxAgentNameLength {
		s = string([]rune(s)[:MaxAgentNameLength])
	}
	return strings.TrimSpace(s)
}

// Summary is the message of the first violation, used as the headline of a
// rejected submission.
func Summary(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	return violations[0].Message
}

func shapeViolation(pos *int, field, problem string) Violation {
	var msg string
	switch problem {
	case RuleRequired:
		msg = field + " is required"
	case RuleType:
		msg = field + " must be a number"
	case RuleInteger:
		msg = field + " must be a whole number"
	case RuleNonNegative:
		msg = field + " must not be negative"
	case RuleRange:
		msg = field + " is out of range"
	default:
		msg = field + " is invalid"
	}
	return Violation{Station: pos, Rule: problem, Fields: []string{field}, Message: msg}
}
