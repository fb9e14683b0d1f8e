package tally

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tallyboard/internal/metrics"
	"tallyboard/internal/models"
)

// tier is one hierarchy table as seen from ballot_records.
type tier struct {
	level     Level
	table     string
	alias     string
	recordCol string // column on ballot_records, also the FK column on the child tier
	nameAs    string
}

var tiers = []tier{
	{LevelDepartment, "departments", "d", "department_id", "department_name"},
	{LevelCommune, "communes", "c", "commune_id", "commune_name"},
	{LevelDistrict, "districts", "a", "district_id", "district_name"},
	{LevelVillage, "villages", "v", "village_id", "village_name"},
	{LevelCenter, "centers", "ce", "center_id", "center_name"},
	{LevelStation, "polling_stations", "s", "polling_station_id", "station_name"},
}

var sumColumns = []string{
	"registered_voters", "voters", "null_ballots", "blank_ballots",
	"valid_ballots", "candidate_a_votes", "candidate_b_votes",
}

func tierIndex(level Level) int {
	for i, t := range tiers {
		if t.level == level {
			return i
		}
	}
	return -1
}

// Query selects one level, optionally filtered by a case-insensitive
// substring of any place name on the row. Limit 0 means the engine default,
// which a non-empty Search lifts.
type Query struct {
	Level  Level
	Search string
	Limit  int
}

type Options struct {
	TableRowCap int
	AgentRowCap int
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Engine runs the aggregation queries. It holds no state besides the store
// handle and is safe for concurrent use.
type Engine struct {
	db   *gorm.DB
	opts Options
}

func NewEngine(db *gorm.DB, opts Options) *Engine {
	if opts.TableRowCap <= 0 {
		opts.TableRowCap = 500
	}
	if opts.AgentRowCap <= 0 {
		opts.AgentRowCap = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{db: db, opts: opts}
}

// National sums every ballot record and splits the two-way vote by pair.
func (e *Engine) National(ctx context.Context) (*National, error) {
	defer e.observe("national", time.Now())

	var totals Totals
	err := e.db.WithContext(ctx).Raw("SELECT " + sums("") + " FROM ballot_records").Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("national totals: %w", err)
	}

	var pairs []models.CandidatePair
	if err := e.db.WithContext(ctx).Order("id").Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("candidate pairs: %w", err)
	}
	labels := map[uint]string{models.PairA: "A", models.PairB: "B"}
	for _, p := range pairs {
		labels[p.ID] = p.Label
	}

	votes := totals.Votes()
	return &National{
		Totals:            totals,
		ParticipationRate: totals.Participation(),
		TotalVotes:        votes,
		ByPair: []PairShare{
			{ID: models.PairA, Label: labels[models.PairA], Total: totals.CandidateAVotes, Percentage: Ratio(totals.CandidateAVotes, votes)},
			{ID: models.PairB, Label: labels[models.PairB], Total: totals.CandidateBVotes, Percentage: Ratio(totals.CandidateBVotes, votes)},
		},
	}, nil
}

type groupScan struct {
	ID             uint
	Name           string
	DepartmentName string
	CommuneName    string
	DistrictName   string
	VillageName    string
	CenterName     string
	Totals
}

// Rollup returns one row per node of q.Level, nodes without records
// included with zero sums. Rows are ordered by ancestor names, then name.
func (e *Engine) Rollup(ctx context.Context, q Query) ([]Row, error) {
	k := tierIndex(q.Level)
	if k < 0 {
		return nil, fmt.Errorf("rollup: invalid level %q", q.Level)
	}
	defer e.observe(string(q.Level), time.Now())

	leaf := tiers[k]
	selects := []string{leaf.alias + ".id AS id", leaf.alias + ".name AS name"}
	groups := []string{leaf.alias + ".id", leaf.alias + ".name"}
	var orders, filters, joins []string
	for i := 0; i < k; i++ {
		t := tiers[i]
		selects = append(selects, t.alias+".name AS "+t.nameAs)
		groups = append(groups, t.alias+".name")
		orders = append(orders, t.alias+".name")
	}
	for i := k - 1; i >= 0; i-- {
		parent, child := tiers[i], tiers[i+1]
		joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.%s = %s.id",
			parent.table, parent.alias, child.alias, parent.recordCol, parent.alias))
	}
	for i := 0; i <= k; i++ {
		filters = append(filters, likeClause(tiers[i].alias+".name"))
	}
	orders = append(orders, leaf.alias+".name", leaf.alias+".id")

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, %s FROM %s %s ", strings.Join(selects, ", "), sums("b."), leaf.table, leaf.alias)
	for _, j := range joins {
		sb.WriteString(j + " ")
	}
	fmt.Fprintf(&sb, "LEFT JOIN ballot_records b ON b.%s = %s.id", leaf.recordCol, leaf.alias)

	args := searchArgs(q.Search, len(filters))
	if len(args) > 0 {
		sb.WriteString(" WHERE " + strings.Join(filters, " OR "))
	}
	sb.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	if limit := e.limit(q, e.opts.TableRowCap); limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	var scanned []groupScan
	if err := e.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&scanned).Error; err != nil {
		return nil, fmt.Errorf("rollup by %s: %w", q.Level, err)
	}

	rows := make([]Row, 0, len(scanned))
	for _, s := range scanned {
		rows = append(rows, Row{
			ID:                   s.ID,
			Name:                 s.Name,
			Department:           s.DepartmentName,
			Commune:              s.CommuneName,
			District:             s.DistrictName,
			Village:              s.VillageName,
			Center:               s.CenterName,
			Totals:               s.Totals,
			ParticipationRate:    s.Participation(),
			CandidateAPercentage: Ratio(s.CandidateAVotes, s.Votes()),
			CandidateBPercentage: Ratio(s.CandidateBVotes, s.Votes()),
		})
	}
	return rows, nil
}

type agentScan struct {
	ID             uint
	AgentFullName  string
	CreatedAt      time.Time
	DepartmentName string
	CommuneName    string
	DistrictName   string
	VillageName    string
	CenterName     string
	StationName    string
	Observations   string
	Totals
}

// Recent lists individual ballot records, newest first.
func (e *Engine) Recent(ctx context.Context, q Query) ([]AgentRow, error) {
	defer e.observe(string(LevelAgent), time.Now())

	selects := []string{"b.id AS id", "b.agent_full_name AS agent_full_name", "b.created_at AS created_at"}
	joins := make([]string, 0, len(tiers))
	filters := []string{likeClause("b.agent_full_name")}
	for _, t := range tiers {
		if t.level == LevelStation {
			selects = append(selects, "COALESCE(s.name, '') AS station_name")
			joins = append(joins, "LEFT JOIN polling_stations s ON b.polling_station_id = s.id")
		} else {
			selects = append(selects, t.alias+".name AS "+t.nameAs)
			joins = append(joins, fmt.Sprintf("JOIN %s %s ON b.%s = %s.id", t.table, t.alias, t.recordCol, t.alias))
		}
		filters = append(filters, likeClause(t.alias+".name"))
	}
	for _, col := range sumColumns {
		selects = append(selects, "b."+col+" AS "+col)
	}
	selects = append(selects, "COALESCE(b.observations, '') AS observations")

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM ballot_records b %s", strings.Join(selects, ", "), strings.Join(joins, " "))
	args := searchArgs(q.Search, len(filters))
	if len(args) > 0 {
		sb.WriteString(" WHERE " + strings.Join(filters, " OR "))
	}
	sb.WriteString(" ORDER BY b.created_at DESC, b.id DESC")
	if limit := e.limit(q, e.opts.AgentRowCap); limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}

	var scanned []agentScan
	if err := e.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&scanned).Error; err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}

	rows := make([]AgentRow, 0, len(scanned))
	for _, s := range scanned {
		rows = append(rows, AgentRow{
			ID:                s.ID,
			AgentFullName:     s.AgentFullName,
			CreatedAt:         s.CreatedAt,
			Department:        s.DepartmentName,
			Commune:           s.CommuneName,
			District:          s.DistrictName,
			Village:           s.VillageName,
			Center:            s.CenterName,
			Station:           s.StationName,
			Totals:            s.Totals,
			Observations:      s.Observations,
			ParticipationRate: s.Participation(),
		})
	}
	return rows, nil
}

// Table answers a dashboard table query for any level, agent included.
func (e *Engine) Table(ctx context.Context, q Query) (*Table, error) {
	if q.Level == LevelAgent {
		rows, err := e.Recent(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Table{Level: q.Level, Rows: rows, Count: len(rows)}, nil
	}
	rows, err := e.Rollup(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Table{Level: q.Level, Rows: rows, Count: len(rows)}, nil
}

// SnapshotOptions picks what a live feed tick contains.
type SnapshotOptions struct {
	Level       Level
	RecentLimit int
}

// Snapshot runs the national, level and recent queries concurrently.
func (e *Engine) Snapshot(ctx context.Context, opts SnapshotOptions) (*Snapshot, error) {
	snap := &Snapshot{Level: opts.Level}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := e.National(gctx)
		snap.National = n
		return err
	})
	if opts.Level != "" && opts.Level != LevelAgent {
		g.Go(func() error {
			rows, err := e.Rollup(gctx, Query{Level: opts.Level})
			snap.Rows = rows
			return err
		})
	}
	if opts.RecentLimit > 0 {
		g.Go(func() error {
			recent, err := e.Recent(gctx, Query{Level: LevelAgent, Limit: opts.RecentLimit})
			snap.Recent = recent
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.GeneratedAt = e.opts.Now().UTC()
	return snap, nil
}

func (e *Engine) limit(q Query, defaultCap int) int {
	if q.Limit > 0 {
		return q.Limit
	}
	if strings.TrimSpace(q.Search) != "" {
		return 0
	}
	return defaultCap
}

func (e *Engine) observe(level string, start time.Time) {
	e.opts.Metrics.ObserveQuery(level, time.Since(start))
}

func sums(prefix string) string {
	parts := make([]string, 0, len(sumColumns))
	for _, col := range sumColumns {
		parts = append(parts, fmt.Sprintf("CAST(COALESCE(SUM(%s%s), 0) AS BIGINT) AS %s", prefix, col, col))
	}
	return strings.Join(parts, ", ")
}

func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '\\'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchArgs returns n copies of the LIKE pattern, or nil when search is blank.
func searchArgs(search string, n int) []interface{} {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pattern
	}
	return args
}
