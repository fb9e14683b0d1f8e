package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tallyboard/internal/models"
)

// ErrUnknownReference is returned when a claimed id has no row at its level.
var ErrUnknownReference = errors.New("unknown reference")

// ReferenceError names the level and id that failed to resolve.
type ReferenceError struct {
	Level  Level
	ID     uint
	Parent uint // set when the row exists but under another parent
}

func (e *ReferenceError) Error() string {
	if e.Parent != 0 {
		return fmt.Sprintf("%s %d does not belong to %s %d", e.Level, e.ID, e.Level.Parent(), e.Parent)
	}
	return fmt.Sprintf("%s %d does not exist", e.Level, e.ID)
}

func (e *ReferenceError) Unwrap() error { return ErrUnknownReference }

// Upsert inserts (name, parent) at level or returns the id of the existing
// row. It is a single statement, so concurrent callers racing on the same
// name all get the same id. parentID is ignored for departments.
func Upsert(ctx context.Context, db *gorm.DB, level Level, name string, parentID uint) (uint, error) {
	t, err := lookup(level)
	if err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("upsert %s: empty name", level)
	}

	var (
		query string
		args  []interface{}
		now   = time.Now().UTC()
	)
	if t.parentColumn == "" {
		query = fmt.Sprintf(
			"INSERT INTO %s (name, created_at) VALUES (?, ?) ON CONFLICT (%s) DO UPDATE SET name = excluded.name RETURNING id",
			t.table, t.conflict)
		args = []interface{}{name, now}
	} else {
		query = fmt.Sprintf(
			"INSERT INTO %s (name, %s, created_at) VALUES (?, ?, ?) ON CONFLICT (%s) DO UPDATE SET name = excluded.name RETURNING id",
			t.table, t.parentColumn, t.conflict)
		args = []interface{}{name, parentID, now}
	}

	var id uint
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("upsert %s %q: %w", level, name, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("upsert %s %q: no id returned", level, name)
	}
	return id, nil
}

// EnsureStations resolves or creates the fixed polling stations of a center
// and maps each 1-based station index to its row id.
func EnsureStations(ctx context.Context, db *gorm.DB, centerID uint, names []string) (map[int]uint, error) {
	out := make(map[int]uint, len(names))
	for i, name := range names {
		id, err := Upsert(ctx, db, LevelStation, name, centerID)
		if err != nil {
			return nil, err
		}
		out[i+1] = id
	}
	return out, nil
}

// VerifyPath checks that every id of the path has a row. With strict set it
// also checks that each node sits under the previous one.
func VerifyPath(ctx context.Context, db *gorm.DB, path models.LocationPath, strict bool) error {
	ids := []uint{path.DepartmentID, path.CommuneID, path.DistrictID, path.VillageID, path.CenterID}
	for i, level := range Path {
		t := tables[level]
		q := db.WithContext(ctx).Table(t.table).Where("id = ?", ids[i])

		var n int64
		if err := q.Count(&n).Error; err != nil {
			return fmt.Errorf("verify %s %d: %w", level, ids[i], err)
		}
		if n == 0 {
			return &ReferenceError{Level: level, ID: ids[i]}
		}
		if !strict || t.parentColumn == "" {
			continue
		}

		n = 0
		err := db.WithContext(ctx).Table(t.table).
			Where("id = ? AND "+t.parentColumn+" = ?", ids[i], ids[i-1]).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("verify %s %d parent: %w", level, ids[i], err)
		}
		if n == 0 {
			return &ReferenceError{Level: level, ID: ids[i], Parent: ids[i-1]}
		}
	}
	return nil
}

// Departments lists every department ordered by name.
func Departments(ctx context.Context, db *gorm.DB) ([]models.NamedNode, error) {
	var out []models.NamedNode
	err := db.WithContext(ctx).Table(tables[LevelDepartment].table).
		Select("id, name").Order("name, id").Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return nonNil(out), nil
}

// Children lists the nodes of level whose parent is parentID, ordered by name.
func Children(ctx context.Context, db *gorm.DB, level Level, parentID uint) ([]models.NamedNode, error) {
	t, err := lookup(level)
	if err != nil {
		return nil, err
	}
	if t.parentColumn == "" {
		return Departments(ctx, db)
	}

	var out []models.NamedNode
	err = db.WithContext(ctx).Table(t.table).
		Select("id, name").
		Where(t.parentColumn+" = ?", parentID).
		Order("name, id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list %s children of %d: %w", level, parentID, err)
	}
	return nonNil(out), nil
}

// Stations lists the polling stations already created for a center.
func Stations(ctx context.Context, db *gorm.DB, centerID uint) ([]models.NamedNode, error) {
	return Children(ctx, db, LevelStation, centerID)
}

// Counts returns the number of rows per level, stations included.
func Counts(ctx context.Context, db *gorm.DB) (map[Level]int64, error) {
	out := make(map[Level]int64, len(tables))
	for level, t := range tables {
		var n int64
		if err := db.WithContext(ctx).Table(t.table).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", level, err)
		}
		out[level] = n
	}
	return out, nil
}

func nonNil(nodes []models.NamedNode) []models.NamedNode {
	if nodes == nil {
		return []models.NamedNode{}
	}
	return nodes
}
