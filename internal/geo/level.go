// Package geo owns the department → commune → district → village → center
// hierarchy and the polling stations hanging off each center.
package geo

import "fmt"

// Level names one tier of the hierarchy.
type Level string

const (
	LevelDepartment Level = "department"
	LevelCommune    Level = "commune"
	LevelDistrict   Level = "district"
	LevelVillage    Level = "village"
	LevelCenter     Level = "center"
	LevelStation    Level = "station"
)

// Path is the ordered list of tiers a ballot record points at.
var Path = []Level{LevelDepartment, LevelCommune, LevelDistrict, LevelVillage, LevelCenter}

type levelTable struct {
	table        string
	parentColumn string // empty for departments
	conflict     string
}

var tables = map[Level]levelTable{
	LevelDepartment: {table: "departments", conflict: "name"},
	LevelCommune:    {table: "communes", parentColumn: "department_id", conflict: "name, department_id"},
	LevelDistrict:   {table: "districts", parentColumn: "commune_id", conflict: "name, commune_id"},
	LevelVillage:    {table: "villages", parentColumn: "district_id", conflict: "name, district_id"},
	LevelCenter:     {table: "centers", parentColumn: "village_id", conflict: "name, village_id"},
	LevelStation:    {table: "polling_stations", parentColumn: "center_id", conflict: "center_id, name"},
}

func lookup(level Level) (levelTable, error) {
	t, ok := tables[level]
	if !ok {
		return levelTable{}, fmt.Errorf("unknown hierarchy level %q", level)
	}
	return t, nil
}

// Parent returns the tier above level, or "" for departments.
func (l Level) Parent() Level {
	switch l {
	case LevelCommune:
		return LevelDepartment
	case LevelDistrict:
		return LevelCommune
	case LevelVillage:
		return LevelDistrict
	case LevelCenter:
		return LevelVillage
	case LevelStation:
		return LevelCenter
	}
	return ""
}
