package geo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LoadStats counts the nodes written per level during one Load.
type LoadStats map[Level]int

// Loader writes a parsed Tree into the store. Running it twice on the same
// tree leaves the row counts unchanged.
type Loader struct {
	db *gorm.DB

	// OnNode, when set, is called after every node is written.
	OnNode func(level Level, name string)
}

func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db}
}

// Load upserts the whole tree in one transaction. Any store error rolls
// everything back.
func (l *Loader) Load(ctx context.Context, tree *Tree) (stats LoadStats, err error) {
	stats = make(LoadStats, len(Path))

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin load: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = l.write(ctx, tx, tree.Departments, 0, 0, stats); err != nil {
		return nil, err
	}
	if err = tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit load: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"departments": stats[LevelDepartment],
		"communes":    stats[LevelCommune],
		"districts":   stats[LevelDistrict],
		"villages":    stats[LevelVillage],
		"centers":     stats[LevelCenter],
	}).Info("Hierarchy loaded.")
	return stats, nil
}

func (l *Loader) write(ctx context.Context, tx *gorm.DB, nodes []Node, depth int, parentID uint, stats LoadStats) error {
	if depth >= len(Path) {
		return nil
	}
	level := Path[depth]
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := Upsert(ctx, tx, level, n.Name, parentID)
		if err != nil {
			return err
		}
		stats[level]++
		if l.OnNode != nil {
			l.OnNode(level, n.Name)
		}
		if err := l.write(ctx, tx, n.Children, depth+1, id, stats); err != nil {
			return err
		}
	}
	return nil
}
