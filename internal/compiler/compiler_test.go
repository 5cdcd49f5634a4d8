package compiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
)

const qc = "temp_qc IN (1, 2, 3) AND sal_qc IN (1, 2, 3)"

func analyze(text string) intent.Analysis {
	return intent.NewAnalyzer(catalog.Default()).Analyze(text)
}

// fixedDrafter returns the same draft every time and counts calls.
type fixedDrafter struct {
	draft string
	err   error
	calls atomic.Int32
}

func (d *fixedDrafter) Name() string { return "llm" }

func (d *fixedDrafter) Draft(context.Context, DraftRequest) (string, error) {
	d.calls.Add(1)
	return d.draft, d.err
}

type auditLog struct {
	mu   sync.Mutex
	rows []Rejection
}

func (a *auditLog) RecordRejection(_ context.Context, r Rejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, r)
	return nil
}

func compileDraft(t *testing.T, draft string, a intent.Analysis) (CompiledQuery, error) {
	t.Helper()
	c := New(catalog.Default(), WithDrafter(&fixedDrafter{draft: draft}))
	return c.Compile(context.Background(), "question", a, "")
}

func TestCompileTemplateThermoclineBayOfBengal(t *testing.T) {
	c := New(catalog.Default())
	text := "Calculate thermocline for Bay of Bengal"

	got, err := c.Compile(context.Background(), text, analyze(text), "")
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT float_id, cycle_number, latitude, longitude, timestamp, pressure, temperature, salinity "+
			"FROM argo_profiles WHERE "+qc+
			" AND latitude BETWEEN 5 AND 25 AND longitude BETWEEN 80 AND 100"+
			" AND pressure >= 50 AND pressure <= 200 ORDER BY pressure ASC LIMIT 5000;",
		got.SQL)
	assert.True(t, got.Validated)
	assert.Equal(t, SourceTemplate, got.Source)
	assert.False(t, got.Cached)
}

func TestCompileFloatIdentifierUsesLike(t *testing.T) {
	c := New(catalog.Default())
	text := "Show data for float 1901740 cycle 12, top 50 rows"

	got, err := c.Compile(context.Background(), text, analyze(text), "")
	require.NoError(t, err)

	assert.Contains(t, got.SQL, "float_id LIKE '%1901740%'")
	assert.Contains(t, got.SQL, "cycle_number = 12")
	assert.NotContains(t, got.SQL, "float_id =")
	assert.True(t, strings.HasSuffix(got.SQL, "ORDER BY cycle_number ASC, pressure ASC LIMIT 50;"))
}

func TestCompileRepairsIdentifierEquality(t *testing.T) {
	got, err := compileDraft(t, "SELECT * FROM argo_profiles WHERE float_id = '1901740'", intent.Analysis{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM argo_profiles WHERE "+qc+" AND (float_id LIKE '%1901740%') LIMIT 5000;",
		got.SQL)

	got, err = compileDraft(t, "SELECT * FROM argo_profiles WHERE float_id = 1901740 LIMIT 10", intent.Analysis{})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "float_id LIKE '%1901740%'")
}

func TestCompileRepairsIdentifierIn(t *testing.T) {
	got, err := compileDraft(t,
		"SELECT * FROM argo_profiles WHERE float_id IN ('1901740', '2902746') LIMIT 10",
		intent.Analysis{})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "(float_id LIKE '%1901740%' OR float_id LIKE '%2902746%')")
}

func TestCompileRepairsAnchoredIdentifierLike(t *testing.T) {
	tests := []struct {
		draft string
		want  string
	}{
		{"SELECT * FROM argo_profiles WHERE float_id LIKE '1901740'", "float_id LIKE '%1901740%'"},
		{"SELECT * FROM argo_profiles WHERE float_id like '1901740%'", "float_id LIKE '%1901740%'"},
		{"SELECT * FROM argo_profiles WHERE float_id ILIKE '%1901740'", "float_id ILIKE '%1901740%'"},
		{"SELECT * FROM argo_profiles WHERE float_id NOT LIKE '1901740'", "float_id NOT LIKE '%1901740%'"},
	}
	for _, tt := range tests {
		got, err := compileDraft(t, tt.draft, intent.Analysis{})
		require.NoError(t, err, tt.draft)
		assert.Contains(t, got.SQL, tt.want, tt.draft)
	}

	got, err := compileDraft(t, "SELECT * FROM argo_profiles WHERE float_id LIKE '%1901740%'", intent.Analysis{})
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "(float_id LIKE '%1901740%')")
}

func TestCompileSelfCheckRejectsSurvivingEquality(t *testing.T) {
	for _, draft := range []string{
		"SELECT * FROM argo_profiles WHERE float_id NOT IN ('1901740')",
		"SELECT * FROM argo_profiles WHERE float_id <> '1901740'",
		"SELECT * FROM argo_profiles WHERE TRIM(float_id) = '1901740'",
		"SELECT * FROM argo_profiles WHERE UPPER(TRIM(float_id)) IN ('1901740')",
		"SELECT * FROM argo_profiles WHERE CAST(float_id AS text) = '1901740'",
		"SELECT * FROM argo_profiles WHERE float_id::text = '1901740'",
		"SELECT * FROM argo_profiles WHERE '1901740' = float_id",
		"SELECT * FROM argo_profiles WHERE '1901740' = TRIM(float_id)",
	} {
		_, err := compileDraft(t, draft, intent.Analysis{})
		require.Error(t, err, draft)
		assert.True(t, IsSelfCheckFailure(err), draft)
		assert.ErrorIs(t, err, ErrCompileFailure)
	}
}

func TestCompileInjectsQualityFilter(t *testing.T) {
	tests := []struct {
		name  string
		draft string
		want  string
	}{
		{
			name:  "no where clause",
			draft: "SELECT float_id FROM argo_profiles ORDER BY timestamp DESC LIMIT 20",
			want:  "SELECT float_id FROM argo_profiles WHERE " + qc + " ORDER BY timestamp DESC LIMIT 20;",
		},
		{
			name:  "disjunction is parenthesized",
			draft: "SELECT * FROM argo_profiles WHERE latitude > 5 OR longitude < 80 ORDER BY timestamp DESC",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (latitude > 5 OR longitude < 80) ORDER BY timestamp DESC LIMIT 5000;",
		},
		{
			name:  "canonical filter kept as is",
			draft: "SELECT * FROM argo_profiles WHERE temp_qc in (1,2,3) and sal_qc IN (1, 2, 3) AND latitude BETWEEN 5 AND 25 LIMIT 5",
			want:  "SELECT * FROM argo_profiles WHERE temp_qc in (1,2,3) and sal_qc IN (1, 2, 3) AND latitude BETWEEN 5 AND 25 LIMIT 5;",
		},
		{
			name:  "narrower filter is kept inside",
			draft: "SELECT * FROM argo_profiles WHERE temp_qc IN (1,2) AND sal_qc = 1 LIMIT 5",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (temp_qc IN (1,2) AND sal_qc = 1) LIMIT 5;",
		},
		{
			name:  "one column missing",
			draft: "SELECT * FROM argo_profiles WHERE temp_qc = 1 LIMIT 5",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (temp_qc = 1) LIMIT 5;",
		},
		{
			name:  "rejected flags",
			draft: "SELECT * FROM argo_profiles WHERE temp_qc = 4 AND sal_qc = 9",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (temp_qc = 4 AND sal_qc = 9) LIMIT 5000;",
		},
		{
			name:  "widened by disjunction",
			draft: "SELECT * FROM argo_profiles WHERE temp_qc IN (1,2,3,4,9) OR sal_qc IS NOT NULL",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (temp_qc IN (1,2,3,4,9) OR sal_qc IS NOT NULL) LIMIT 5000;",
		},
		{
			name:  "canonical filter escaped by top-level or",
			draft: "SELECT * FROM argo_profiles WHERE " + qc + " OR 1 = 1",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (" + qc + " OR 1 = 1) LIMIT 5000;",
		},
		{
			name:  "negated filter",
			draft: "SELECT * FROM argo_profiles WHERE NOT (" + qc + ")",
			want:  "SELECT * FROM argo_profiles WHERE " + qc + " AND (NOT (" + qc + ")) LIMIT 5000;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileDraft(t, tt.draft, intent.Analysis{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SQL)
		})
	}
}

func TestCompileUnfilteredSkipsQualityFilter(t *testing.T) {
	a := intent.Analysis{Signals: intent.Signals{Unfiltered: true}}
	got, err := compileDraft(t, "SELECT * FROM argo_profiles LIMIT 5", a)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM argo_profiles LIMIT 5;", got.SQL)
}

func TestCompileRowLimitPolicy(t *testing.T) {
	tests := []struct {
		draft     string
		requested int
		want      string
	}{
		{"SELECT * FROM argo_profiles WHERE " + qc, 0, " LIMIT 5000;"},
		{"SELECT * FROM argo_profiles WHERE " + qc, 200, " LIMIT 200;"},
		{"SELECT * FROM argo_profiles WHERE " + qc, 50000, " LIMIT 10000;"},
		{"SELECT * FROM argo_profiles WHERE " + qc + " LIMIT 50000", 0, " LIMIT 10000;"},
		{"SELECT * FROM argo_profiles WHERE " + qc + " LIMIT ALL", 0, " LIMIT 10000;"},
		{"SELECT * FROM argo_profiles WHERE " + qc + " LIMIT 25", 0, " LIMIT 25;"},
	}
	for _, tt := range tests {
		a := intent.Analysis{Signals: intent.Signals{Limit: tt.requested}}
		got, err := compileDraft(t, tt.draft, a)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(got.SQL, tt.want), "%s -> %s", tt.draft, got.SQL)
	}
}

func TestCompileCleansModelOutput(t *testing.T) {
	drafts := []string{
		"Here is your query:\n```sql\nSELECT * FROM argo_profiles LIMIT 5;\n```\nIt's simple.",
		`{"sql": "SELECT * FROM argo_profiles LIMIT 5", "explanation": "all rows"}`,
		"-- latest rows\nSELECT *\n  FROM argo_profiles /* all */\n LIMIT 5;",
	}
	for _, d := range drafts {
		got, err := compileDraft(t, d, intent.Analysis{})
		require.NoError(t, err, d)
		assert.Equal(t, "SELECT * FROM argo_profiles WHERE "+qc+" LIMIT 5;", got.SQL)
	}
}

func TestCompileCollapsesCTE(t *testing.T) {
	got, err := compileDraft(t,
		"WITH recent AS (SELECT * FROM argo_profiles) SELECT float_id FROM argo_profiles LIMIT 10",
		intent.Analysis{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT float_id FROM argo_profiles WHERE "+qc+" LIMIT 10;", got.SQL)

	_, err = compileDraft(t,
		"WITH recent AS (SELECT * FROM argo_profiles) SELECT * FROM recent",
		intent.Analysis{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeCleanupFailed, CodeOf(err))
	assert.ErrorIs(t, err, ErrUnflattenableCTE)
}

func TestCompileRejectsUnsafeDrafts(t *testing.T) {
	tests := []struct {
		name  string
		draft string
		code  ErrorCode
		cause error
	}{
		{"drop", "DROP TABLE argo_profiles;", ErrCodeValidationRejected, ErrForbiddenKeyword},
		{"piggybacked delete", "SELECT * FROM argo_profiles; DELETE FROM argo_profiles;", ErrCodeValidationRejected, ErrForbiddenKeyword},
		{"two selects", "SELECT * FROM argo_profiles; SELECT 1;", ErrCodeCleanupFailed, ErrMultipleStatements},
		{"sub-select", "SELECT * FROM argo_profiles WHERE temperature > (SELECT AVG(temperature) FROM argo_profiles)", ErrCodeCleanupFailed, ErrNestedSelect},
		{"union", "SELECT float_id FROM argo_profiles UNION SELECT float_id FROM argo_profiles", ErrCodeCleanupFailed, ErrNestedSelect},
		{"prose only", "I cannot answer that.", ErrCodeCleanupFailed, ErrNotSelect},
		{"empty", "   ", ErrCodeCleanupFailed, ErrEmptyDraft},
		{"open quote", "SELECT * FROM argo_profiles WHERE platform_type = 'APEX", ErrCodeCleanupFailed, ErrUnterminatedLiteral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileDraft(t, tt.draft, intent.Analysis{})
			require.Error(t, err)
			assert.Empty(t, got.SQL)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestCompileKeywordsInsideLiterals(t *testing.T) {
	got, err := compileDraft(t,
		"SELECT * FROM argo_profiles WHERE platform_type LIKE '%update%' AND data_mode <> ';' LIMIT 5",
		intent.Analysis{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM argo_profiles WHERE "+qc+" AND (platform_type LIKE '%update%' AND data_mode <> ';') LIMIT 5;",
		got.SQL)
}

func TestCompileWrongTableRejected(t *testing.T) {
	_, err := compileDraft(t, "SELECT * FROM pg_user LIMIT 5", intent.Analysis{})
	require.Error(t, err)
	assert.True(t, IsValidationRejected(err))
	assert.ErrorIs(t, err, ErrValidationRejected)
	assert.NotErrorIs(t, err, ErrCompileFailure)
}

func TestCompileRejectionIsAudited(t *testing.T) {
	audit := &auditLog{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC))
	c := New(catalog.Default(),
		WithDrafter(&fixedDrafter{draft: "DROP TABLE argo_profiles;"}),
		WithAuditSink(audit),
		WithClock(clock))

	_, err := c.Compile(context.Background(), "drop everything", intent.Analysis{}, "")
	require.Error(t, err)

	require.Len(t, audit.rows, 1)
	r := audit.rows[0]
	assert.Equal(t, "drop everything", r.Question)
	assert.Equal(t, ErrCodeValidationRejected, r.Code)
	assert.Equal(t, "DROP TABLE argo_profiles;", r.Draft)
	assert.Equal(t, clock.Now(), r.At)
	assert.Equal(t, Stats{Total: 1, Failures: 1}, c.Stats())
}

func TestCompileDraftErrorIsCompileFailure(t *testing.T) {
	c := New(catalog.Default(), WithDrafter(&fixedDrafter{err: errors.New("model unavailable")}))
	_, err := c.Compile(context.Background(), "q", intent.Analysis{}, "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeDraftFailed, CodeOf(err))
	assert.ErrorIs(t, err, ErrCompileFailure)
}

func TestCompileIsMemoized(t *testing.T) {
	d := &fixedDrafter{draft: "SELECT * FROM argo_profiles LIMIT 5"}
	c := New(catalog.Default(), WithDrafter(d))
	ctx := context.Background()

	first, err := c.Compile(ctx, "latest rows", intent.Analysis{}, "ctx")
	require.NoError(t, err)
	second, err := c.Compile(ctx, "latest rows", intent.Analysis{}, "ctx")
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, first.CacheKey, second.CacheKey)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), d.calls.Load())

	// different retrieval context is a different entry
	third, err := c.Compile(ctx, "latest rows", intent.Analysis{}, "other")
	require.NoError(t, err)
	assert.NotEqual(t, first.CacheKey, third.CacheKey)
	assert.Equal(t, int32(2), d.calls.Load())

	assert.Equal(t, Stats{Total: 3, CacheHits: 1}, c.Stats())
}

func TestCompileFailuresAreNotCached(t *testing.T) {
	d := &fixedDrafter{draft: "DROP TABLE argo_profiles"}
	c := New(catalog.Default(), WithDrafter(d))

	for range 2 {
		_, err := c.Compile(context.Background(), "q", intent.Analysis{}, "")
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), d.calls.Load())
	assert.Zero(t, c.Cache().Len())
}

func TestCompileSpatialBranch(t *testing.T) {
	d := &fixedDrafter{draft: "SELECT * FROM argo_profiles LIMIT 5"}
	c := New(catalog.Default(), WithDrafter(d))
	text := "Find the nearest floats to 15°N, 75°E within 200 km"

	got, err := c.Compile(context.Background(), text, analyze(text), "")
	require.NoError(t, err)

	assert.Equal(t, SourceSpatial, got.Source)
	assert.Contains(t, got.SQL, "<= 200")
	assert.Contains(t, got.SQL, "AS distance_km")
	assert.True(t, strings.HasSuffix(got.SQL, "ORDER BY distance_km ASC, id ASC LIMIT 1000;"))
	assert.Zero(t, d.calls.Load(), "spatial questions never reach the drafter")
}

func TestCompileSpatialDefaultRadius(t *testing.T) {
	a := intent.Analysis{
		Type:    intent.TypeNearest,
		Signals: intent.Signals{Coordinates: &intent.Coordinates{Latitude: 10, Longitude: 70}},
	}
	got, err := New(catalog.Default()).Compile(context.Background(), "nearest", a, "")
	require.NoError(t, err)
	assert.Contains(t, got.SQL, "<= 1000")
}

func TestCompileSpatialOutOfRange(t *testing.T) {
	a := intent.Analysis{
		Type:    intent.TypeNearest,
		Signals: intent.Signals{Coordinates: &intent.Coordinates{Latitude: 95, Longitude: 70}},
	}
	_, err := New(catalog.Default()).Compile(context.Background(), "nearest", a, "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeSpatialFailed, CodeOf(err))
}

func TestCompileConcurrentSameKey(t *testing.T) {
	d := &fixedDrafter{draft: "SELECT * FROM argo_profiles LIMIT 5"}
	c := New(catalog.Default(), WithDrafter(d))

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := c.Compile(context.Background(), "same", intent.Analysis{}, "")
			if err == nil {
				results[i] = q.SQL
			}
		}()
	}
	wg.Wait()

	for _, sql := range results {
		assert.Equal(t, results[0], sql)
	}
	assert.NotEmpty(t, results[0])
}

func TestComplexity(t *testing.T) {
	assert.Equal(t, 1, Complexity("SELECT * FROM argo_profiles;"))
	assert.Equal(t, 2, Complexity("SELECT * FROM argo_profiles ORDER BY timestamp DESC;"))
	assert.Equal(t, 1, Complexity("SELECT * FROM argo_profiles WHERE platform_type = 'ORDER';"))
	assert.Equal(t, 4, Complexity("SELECT region, AVG(temperature) FROM argo_profiles GROUP BY region HAVING COUNT(*) > 5 ORDER BY region;"))
}
