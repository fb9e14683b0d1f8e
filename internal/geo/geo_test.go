package geo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyboard/internal/models"
	"tallyboard/internal/testutil"
)

const sample = `{
  "BORGOU": {
    "departement": " BORGOU ",
    "communes": {
      "PARAKOU": {
        "arrondissements": {
          "1ER ARRONDISSEMENT": {
            "code": "A1",
            "villages": {
              "ALAGA": {"code": "V1", "centres": [
                {"code": "C1", "libelle": "EPP ALAGA"},
                {"code": "C2", "libelle": " CEG ALAGA "},
                {"code": "C3"},
                "garbage"
              ]},
              "BANIKANNI": {"code": "V2"},
              "BROKEN": 42
            }
          }
        }
      }
    }
  },
  "ALIBORI": {
    "departement": "ALIBORI",
    "communes": {
      "KANDI": {"arrondissements": {"KASSAKOU": {"villages": {
        "GOGBEDE": {"centres": [{"code": "C9", "libelle": "EPP GOGBEDE"}]}
      }}}}
    }
  },
  "NOWHERE": "not an object"
}`

func TestParseTree_SkipsMalformedEntries(t *testing.T) {
	tree, notices, err := ParseTree(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, tree.Departments, 2)
	assert.Equal(t, "ALIBORI", tree.Departments[0].Name)
	assert.Equal(t, "BORGOU", tree.Departments[1].Name)

	villages := tree.Departments[1].Children[0].Children[0].Children
	require.Len(t, villages, 2)
	assert.Equal(t, "ALAGA", villages[0].Name)
	assert.Equal(t, []Node{{Name: "CEG ALAGA"}, {Name: "EPP ALAGA"}}, villages[0].Children)
	assert.Equal(t, "BANIKANNI", villages[1].Name)
	assert.Empty(t, villages[1].Children)

	size := tree.Size()
	assert.Equal(t, 2, size[LevelDepartment])
	assert.Equal(t, 3, size[LevelVillage])
	assert.Equal(t, 3, size[LevelCenter])

	var reasons []string
	for _, n := range notices {
		reasons = append(reasons, n.Reason)
	}
	assert.ElementsMatch(t, []string{
		"department is not an object",
		"village is not an object",
		"village has no centres",
		"centre has no libelle",
		"centre is not an object",
	}, reasons)
}

func TestParseTree_RejectsUnreadableRoot(t *testing.T) {
	_, _, err := ParseTree(strings.NewReader(`[1, 2]`))
	require.Error(t, err)
}

func TestLoader_IsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	tree, _, err := ParseTree(strings.NewReader(sample))
	require.NoError(t, err)

	var seen int
	loader := NewLoader(db)
	loader.OnNode = func(Level, string) { seen++ }

	stats, err := loader.Load(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, tree.Total(), seen)
	assert.Equal(t, 3, stats[LevelCenter])

	first, err := Counts(ctx, db)
	require.NoError(t, err)

	_, err = loader.Load(ctx, tree)
	require.NoError(t, err)
	second, err := Counts(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), second[LevelDepartment])
	assert.Equal(t, int64(2), second[LevelCommune])
	assert.Equal(t, int64(3), second[LevelVillage])
	assert.Equal(t, int64(3), second[LevelCenter])
	assert.Equal(t, int64(0), second[LevelStation])
}

func TestUpsert_ReturnsExistingID(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	dept, err := Upsert(ctx, db, LevelDepartment, "LITTORAL", 0)
	require.NoError(t, err)
	again, err := Upsert(ctx, db, LevelDepartment, "  LITTORAL ", 0)
	require.NoError(t, err)
	assert.Equal(t, dept, again)

	// same commune name under two departments is two rows
	other, err := Upsert(ctx, db, LevelDepartment, "OUEME", 0)
	require.NoError(t, err)
	c1, err := Upsert(ctx, db, LevelCommune, "CENTRE", dept)
	require.NoError(t, err)
	c2, err := Upsert(ctx, db, LevelCommune, "CENTRE", other)
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)

	_, err = Upsert(ctx, db, LevelCommune, "   ", dept)
	assert.Error(t, err)
	_, err = Upsert(ctx, db, Level("planet"), "EARTH", 0)
	assert.Error(t, err)
}

func TestEnsureStations_ConcurrentCallersShareRows(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := testutil.SeedPath(t, db, testutil.DefaultPlace)
	names := []string{"Bureau de vote 1", "Bureau de vote 2"}

	const workers = 8
	results := make([]map[int]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := EnsureStations(ctx, db, path.CenterID, names)
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(2), testutil.CountRows(t, db, &models.PollingStation{}))
	for _, m := range results {
		assert.Equal(t, results[0], m)
	}

	stations, err := Stations(ctx, db, path.CenterID)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Bureau de vote 1", stations[0].Name)
	assert.Equal(t, results[0][1], stations[0].ID)
}

func TestVerifyPath(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := testutil.SeedPath(t, db, testutil.DefaultPlace)
	b := testutil.SeedPath(t, db, testutil.Place{
		Department: "ZOU", Commune: "ABOMEY", District: "DJEGBE", Village: "HOUNLI", Center: "EPP HOUNLI",
	})

	require.NoError(t, VerifyPath(ctx, db, a, false))
	require.NoError(t, VerifyPath(ctx, db, a, true))

	missing := a
	missing.DistrictID = 9999
	err := VerifyPath(ctx, db, missing, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownReference))
	var refErr *ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, LevelDistrict, refErr.Level)

	// every id exists, but the commune belongs to another department
	mixed := a
	mixed.CommuneID = b.CommuneID
	assert.NoError(t, VerifyPath(ctx, db, mixed, false))
	err = VerifyPath(ctx, db, mixed, true)
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, LevelCommune, refErr.Level)
	assert.Equal(t, a.DepartmentID, refErr.Parent)
}

func TestChildren_OrderedByName(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	dept, err := Upsert(ctx, db, LevelDepartment, "ATLANTIQUE", 0)
	require.NoError(t, err)
	for _, name := range []string{"OUIDAH", "ABOMEY-CALAVI", "KPOMASSE"} {
		_, err := Upsert(ctx, db, LevelCommune, name, dept)
		require.NoError(t, err)
	}

	got, err := Children(ctx, db, LevelCommune, dept)
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, n := range got {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"ABOMEY-CALAVI", "KPOMASSE", "OUIDAH"}, names)

	none, err := Children(ctx, db, LevelCommune, dept+100)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	depts, err := Departments(ctx, db)
	require.NoError(t, err)
	assert.Len(t, depts, 1)
}

func TestStoreRejectsDanglingReferences(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	path := testutil.SeedPath(t, db, testutil.DefaultPlace)

	_, err := Upsert(ctx, db, LevelVillage, "NOWHERE", 4242)
	assert.Error(t, err)
	_, err = EnsureStations(ctx, db, 4242, []string{"Bureau de vote 1"})
	assert.Error(t, err)

	stations, err := EnsureStations(ctx, db, path.CenterID, []string{"Bureau de vote 1"})
	require.NoError(t, err)

	rec := models.BallotRecord{
		AgentFullName:    "Agent",
		PollingStationID: stations[1],
		DepartmentID:     path.DepartmentID,
		CommuneID:        path.CommuneID,
		DistrictID:       path.DistrictID,
		VillageID:        4242,
		CenterID:         path.CenterID,
		LeadingPairID:    models.PairA,
	}
	assert.Error(t, db.Create(&rec).Error)

	rec.ID = 0
	rec.VillageID = path.VillageID
	require.NoError(t, db.Create(&rec).Error)

	// a referenced place cannot be removed
	assert.Error(t, db.Delete(&models.Center{}, path.CenterID).Error)
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.Center{}))
}
