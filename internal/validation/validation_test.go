package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func station(index, registered, voters, valid, null, blank, a, b int64) Station {
	return Station{
		StationIndex:     N(index),
		RegisteredVoters: N(registered),
		Voters:           N(voters),
		ValidBallots:     N(valid),
		NullBallots:      N(null),
		BlankBallots:     N(blank),
		CandidateAVotes:  N(a),
		CandidateBVotes:  N(b),
	}
}

func document(stations ...Station) Document {
	return Document{
		AgentFullName: "  Awa Dossou ",
		DepartmentID:  N(1),
		CommuneID:     N(2),
		DistrictID:    N(3),
		VillageID:     N(4),
		CenterID:      N(5),
		Stations:      stations,
	}
}

func rules(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Rule)
	}
	return out
}

func TestValidate_ConsistentRecordAccepted(t *testing.T) {
	sub, violations := Validate(document(station(1, 100, 60, 55, 3, 2, 30, 25)), 2)
	require.Empty(t, violations)
	require.NotNil(t, sub)

	assert.Equal(t, "Awa Dossou", sub.AgentFullName)
	assert.Equal(t, uint(3), sub.Location.DistrictID)
	require.Len(t, sub.Records, 1)
	assert.Equal(t, Record{
		StationIndex:     1,
		RegisteredVoters: 100,
		Voters:           60,
		ValidBallots:     55,
		NullBallots:      3,
		BlankBallots:     2,
		CandidateAVotes:  30,
		CandidateBVotes:  25,
	}, sub.Records[0])
}

func TestValidate_BallotSumMismatch(t *testing.T) {
	sub, violations := Validate(document(station(1, 100, 60, 55, 3, 3, 30, 25)), 2)
	require.Nil(t, sub)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, RuleBallotSum, v.Rule)
	assert.ElementsMatch(t, []string{"voters", "validBallots", "nullBallots", "blankBallots"}, v.Fields)
	assert.Contains(t, v.Message, "60 ≠ 61")
	require.NotNil(t, v.Station)
	assert.Equal(t, 0, *v.Station)
	assert.Equal(t, v.Message, Summary(violations))
}

func TestCheckRecord_ReportsEveryRule(t *testing.T) {
	// every rule broken at once
	r := Record{
		RegisteredVoters: 10,
		Voters:           20,
		ValidBallots:     30,
		NullBallots:      25,
		BlankBallots:     21,
		CandidateAVotes:  1,
		CandidateBVotes:  1,
	}
	got := CheckRecord(r)
	assert.Equal(t, []string{
		RuleVotersWithinRegistered,
		RuleValidWithinVoters,
		RuleNullWithinVoters,
		RuleBlankWithinVoters,
		RuleBallotSum,
		RuleVoteSum,
	}, rules(got))
	assert.Contains(t, got[0].Message, "20 > 10")
}

func TestCheckRecord_ZeroCountsAccepted(t *testing.T) {
	assert.Empty(t, CheckRecord(Record{StationIndex: 1}))
}

func TestValidate_ShapeErrorsSkipArithmetic(t *testing.T) {
	st := station(1, 100, 60, 55, 3, 2, 30, 25)
	st.Voters = Raw(`"abc"`)
	st.NullBallots = N(-1)
	st.BlankBallots = Raw(`2.5`)
	st.CandidateBVotes = Raw(`null`)

	_, violations := Validate(document(st), 2)
	assert.Equal(t, []string{RuleType, RuleNonNegative, RuleInteger, RuleRequired}, rules(violations))
	for _, v := range violations {
		require.NotNil(t, v.Station)
		require.Len(t, v.Fields, 1)
	}
	assert.Equal(t, "voters must be a number", violations[0].Message)
}

func TestValidate_NumericStringsAccepted(t *testing.T) {
	st := station(1, 100, 60, 55, 3, 2, 30, 25)
	st.Voters = Raw(`"60"`)
	st.StationIndex = Raw(`"1"`)
	st.BlankBallots = Raw(`2.0`)

	sub, violations := Validate(document(st), 2)
	require.Empty(t, violations)
	assert.Equal(t, int64(60), sub.Records[0].Voters)
	assert.Equal(t, int64(2), sub.Records[0].BlankBallots)
}

func TestValidate_DocumentRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		want   string
		field  string
	}{
		{"empty agent", func(d *Document) { d.AgentFullName = "   " }, RuleAgentName, FieldAgentFullName},
		{"only brackets", func(d *Document) { d.AgentFullName = "<>" }, RuleAgentName, FieldAgentFullName},
		{"zero id", func(d *Document) { d.CommuneID = N(0) }, RulePositiveID, FieldCommuneID},
		{"missing id", func(d *Document) { d.CenterID = Count{} }, RuleRequired, FieldCenterID},
		{"no stations", func(d *Document) { d.Stations = nil }, RuleStationsRequired, FieldStations},
		{"index too high", func(d *Document) { d.Stations[0].StationIndex = N(3) }, RuleStationIndex, FieldStationIndex},
		{"index zero", func(d *Document) { d.Stations[0].StationIndex = N(0) }, RuleStationIndex, FieldStationIndex},
		{"long observations", func(d *Document) { d.Stations[0].Observations = strings.Repeat("x", 1001) }, RuleObservations, FieldObservations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document(station(1, 100, 60, 55, 3, 2, 30, 25))
			tt.mutate(&doc)

			sub, violations := Validate(doc, 2)
			require.Nil(t, sub)
			require.Len(t, violations, 1)
			assert.Equal(t, tt.want, violations[0].Rule)
			assert.Equal(t, []string{tt.field}, violations[0].Fields)
		})
	}
}

func TestValidate_DuplicateStationIndex(t *testing.T) {
	doc := document(
		station(1, 100, 60, 55, 3, 2, 30, 25),
		station(1, 80, 40, 40, 0, 0, 20, 20),
	)
	_, violations := Validate(doc, 2)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleDuplicateStation, violations[0].Rule)
	assert.Equal(t, 1, *violations[0].Station)
}

func TestValidate_ViolationsAcrossStations(t *testing.T) {
	doc := document(
		station(1, 100, 60, 55, 3, 2, 30, 25),
		station(2, 50, 60, 60, 0, 0, 30, 29),
	)
	_, violations := Validate(doc, 2)
	assert.Equal(t, []string{RuleVotersWithinRegistered, RuleVoteSum}, rules(violations))
	for _, v := range violations {
		assert.Equal(t, 1, *v.Station)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "script alert", SanitizeName(" <script alert> "))
	assert.Equal(t, "", SanitizeName("   "))
	assert.Len(t, []rune(SanitizeName(strings.Repeat("é", 250))), MaxAgentNameLength)
}

func TestDocument_DecodeKeepsBadTokens(t *testing.T) {
	payload := `{
		"agentFullName": "Agent",
		"departmentId": 1, "communeId": 1, "districtId": 1, "villageId": 1, "centerId": 1,
		"stations": [{"stationIndex": 2, "registeredVoters": "x", "voters": 0,
			"nullBallots": 0, "blankBallots": 0, "validBallots": 0,
			"candidateAVotes": 0, "candidateBVotes": 0}]
	}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))

	_, violations := Validate(doc, 2)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleType, violations[0].Rule)
	assert.Equal(t, []string{FieldRegisteredVoters}, violations[0].Fields)
}

func TestDocument_LegacyShapeRejected(t *testing.T) {
	payload := `{"agentFullName":"Agent","departmentId":1,"communeId":1,"districtId":1,
		"villageId":1,"centerId":1,"duoId":1,"count":120}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))

	_, violations := Validate(doc, 2)
	assert.Equal(t, []string{RuleStationsRequired}, rules(violations))
}

func TestDocument_CountsBeyondInt64Rejected(t *testing.T) {
	payload := `{
		"agentFullName": "Agent",
		"departmentId": 1, "communeId": 1, "districtId": 1, "villageId": 1, "centerId": 1,
		"stations": [{"stationIndex": 1, "registeredVoters": 0, "voters": 0,
			"nullBallots": 0, "blankBallots": 0, "validBallots": 0,
			"candidateAVotes": 9223372036854775808, "candidateBVotes": 9223372036854775808}]
	}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))

	sub, violations := Validate(doc, 2)
	require.Nil(t, sub)
	assert.Equal(t, []string{RuleRange, RuleRange}, rules(violations))
	assert.Equal(t, []string{FieldCandidateAVotes}, violations[0].Fields)
	assert.Equal(t, "candidateAVotes is out of range", violations[0].Message)
}

func TestValidate_OutOfRangeTokens(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{`9223372036854775807`, RuleRange},
		{`9.3e18`, RuleRange},
		{`"9223372036854775808"`, RuleRange},
		{`-9223372036854775809`, RuleNonNegative},
		{`10000000`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			st := station(1, 100, 60, 55, 3, 2, 30, 25)
			st.RegisteredVoters = Raw(tt.token)

			_, violations := Validate(document(st), 2)
			if tt.want == "" {
				assert.Empty(t, violations)
				return
			}
			require.NotEmpty(t, violations)
			assert.Equal(t, tt.want, violations[0].Rule)
			assert.Equal(t, []string{FieldRegisteredVoters}, violations[0].Fields)
		})
	}
}

func TestValidate_FieldRulesCarryStationPosition(t *testing.T) {
	doc := document(
		station(1, 100, 60, 55, 3, 2, 30, 25),
		station(2, 80, 40, 40, 0, 0, 20, 20),
	)
	doc.Stations[1].Observations = strings.Repeat("é", MaxObservationsLength+1)
	doc.AgentFullName = strings.Repeat("a", 300)

	sub, violations := Validate(doc, 2)
	require.Nil(t, sub)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleObservations, violations[0].Rule)
	require.NotNil(t, violations[0].Station)
	assert.Equal(t, 1, *violations[0].Station)
	assert.Equal(t, "observations must be at most 1000 characters", violations[0].Message)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	doc := document(station(1, 100, 60, 55, 3, 2, 30, 25))
	doc.Stations[0].Observations = "  calm  "

	sub, violations := Validate(doc, 2)
	require.Empty(t, violations)
	assert.Equal(t, "calm", sub.Records[0].Observations)
	assert.Equal(t, "  calm  ", doc.Stations[0].Observations)
	assert.Equal(t, "  Awa Dossou ", doc.AgentFullName)
}
