// Package testutil holds store fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tallyboard/internal/config"
	"tallyboard/internal/models"
)

// Pairs are the candidate pairs seeded into every test store.
var Pairs = []models.CandidatePair{
	{ID: models.PairA, Label: "Pair A"},
	{ID: models.PairB, Label: "Pair B"},
}

// NewDB opens a private in-memory SQLite store with the production schema.
// One connection only: SQLite serializes writers and an in-memory database
// lives as long as its connection.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db, Pairs); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Place is a named path created by SeedPath.
type Place struct {
	Department, Commune, District, Village, Center string
}

// SeedPath inserts one department → center chain and returns its ids.
func SeedPath(t testing.TB, db *gorm.DB, p Place) models.LocationPath {
	t.Helper()

	dept := models.Department{Name: p.Department}
	must(t, db.Where(models.Department{Name: p.Department}).FirstOrCreate(&dept).Error)
	commune := models.Commune{Name: p.Commune, DepartmentID: dept.ID}
	must(t, db.Where(commune).FirstOrCreate(&commune).Error)
	district := models.District{Name: p.District, CommuneID: commune.ID}
	must(t, db.Where(district).FirstOrCreate(&district).Error)
	village := models.Village{Name: p.Village, DistrictID: district.ID}
	must(t, db.Where(village).FirstOrCreate(&village).Error)
	center := models.Center{Name: p.Center, VillageID: village.ID}
	must(t, db.Where(center).FirstOrCreate(&center).Error)

	return models.LocationPath{
		DepartmentID: dept.ID,
		CommuneID:    commune.ID,
		DistrictID:   district.ID,
		VillageID:    village.ID,
		CenterID:     center.ID,
	}
}

// DefaultPlace is a ready-made path for tests that need just one.
var DefaultPlace = Place{
	Department: "ALIBORI",
	Commune:    "BANIKOARA",
	District:   "FOUNOUGO",
	Village:    "BOFOUNOU",
	Center:     "EPP BOFOUNOU",
}

// CountRows returns the number of rows of model's table.
func CountRows(t testing.TB, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	must(t, db.Model(model).Count(&n).Error)
	return n
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}
