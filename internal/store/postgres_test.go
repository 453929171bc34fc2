package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumisage/chatscribe/pkg/types"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]byte
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	if len(dest) != 1 {
		return errors.New("scan: expected a single payload destination")
	}
	p, ok := dest[0].(*[]byte)
	if !ok {
		return errors.New("scan: destination must be *[]byte")
	}
	*p = r.data[r.idx-1]
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func sampleResult() *types.SummaryResult {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &types.SummaryResult{
		ID:           "sum-1",
		ChannelID:    "chan-1",
		GuildID:      "guild-1",
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now,
		MessageCount: 42,
		SummaryText:  "The team agreed to ship the cache rollout.",
		KeyPoints:    []string{"Cache rollout approved"},
		Metadata: types.SummaryMetadata{
			Model:        "claude-sonnet-4-20250514",
			InputTokens:  1200,
			OutputTokens: 300,
		},
		CreatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestPostgresStore_Save(t *testing.T) {
	t.Parallel()

	var gotSQL string
	var gotArgs []any
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			gotArgs = args
			return pgconn.CommandTag{}, nil
		},
	}
	s := NewPostgres(db)

	res := sampleResult()
	if err := s.Save(context.Background(), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(gotSQL, "INSERT INTO summary_history") {
		t.Errorf("SQL should insert into summary_history, got: %s", gotSQL)
	}
	if !strings.Contains(gotSQL, "ON CONFLICT (id) DO UPDATE") {
		t.Errorf("SQL should upsert on id conflict, got: %s", gotSQL)
	}
	if len(gotArgs) != 9 {
		t.Fatalf("expected 9 args, got %d", len(gotArgs))
	}
	if gotArgs[0] != "sum-1" || gotArgs[2] != "chan-1" {
		t.Errorf("id/channel args: got %v/%v", gotArgs[0], gotArgs[2])
	}

	payload, ok := gotArgs[7].([]byte)
	if !ok {
		t.Fatalf("payload arg should be []byte, got %T", gotArgs[7])
	}
	var decoded types.SummaryResult
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload should be valid JSON: %v", err)
	}
	if decoded.SummaryText != res.SummaryText {
		t.Errorf("payload summary: got %q, want %q", decoded.SummaryText, res.SummaryText)
	}
}

func TestPostgresStore_SaveRejectsMissingID(t *testing.T) {
	t.Parallel()
	s := NewPostgres(&mockDB{})

	res := sampleResult()
	res.ID = ""
	if err := s.Save(context.Background(), res); err == nil {
		t.Fatal("expected error for missing ID, got nil")
	}
	if err := s.Save(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil result, got nil")
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	want := sampleResult()
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*(dest[0].(*[]byte)) = payload
				return nil
			}}
		},
	}
	s := NewPostgres(db)

	got, err := s.Get(context.Background(), "sum-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a result, got nil")
	}
	if got.ID != want.ID || got.SummaryText != want.SummaryText {
		t.Errorf("result: got %q/%q, want %q/%q", got.ID, got.SummaryText, want.ID, want.SummaryText)
	}
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	t.Parallel()
	s := NewPostgres(&mockDB{}) // default QueryRow returns pgx.ErrNoRows

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("not-found should not be an error, got: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result for missing ID, got %+v", got)
	}
}

func TestPostgresStore_GetCorruptPayload(t *testing.T) {
	t.Parallel()
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*(dest[0].(*[]byte)) = []byte("{not json")
				return nil
			}}
		},
	}
	s := NewPostgres(db)

	_, err := s.Get(context.Background(), "sum-1")
	if err == nil {
		t.Fatal("expected error for corrupt payload, got nil")
	}
	if !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("error should mention unmarshal, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ListByChannel
// ---------------------------------------------------------------------------

func TestPostgresStore_ListByChannel(t *testing.T) {
	t.Parallel()

	first := sampleResult()
	second := sampleResult()
	second.ID = "sum-2"
	p1, _ := json.Marshal(first)
	p2, _ := json.Marshal(second)

	var gotLimit any
	rows := &mockRows{data: [][]byte{p2, p1}}
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotLimit = args[1]
			return rows, nil
		},
	}
	s := NewPostgres(db)

	got, err := s.ListByChannel(context.Background(), "chan-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].ID != "sum-2" || got[1].ID != "sum-1" {
		t.Errorf("order: got %q then %q, want sum-2 then sum-1", got[0].ID, got[1].ID)
	}
	if gotLimit != 2 {
		t.Errorf("limit arg: got %v, want 2", gotLimit)
	}
	if !rows.closed {
		t.Error("rows should be closed after iteration")
	}
}

func TestPostgresStore_ListByChannelDefaultLimit(t *testing.T) {
	t.Parallel()

	var gotLimit any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotLimit = args[1]
			return &mockRows{}, nil
		},
	}
	s := NewPostgres(db)

	if _, err := s.ListByChannel(context.Background(), "chan-1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != defaultListLimit {
		t.Errorf("limit arg: got %v, want %d", gotLimit, defaultListLimit)
	}
}

// ---------------------------------------------------------------------------
// Purge
// ---------------------------------------------------------------------------

func TestPostgresStore_Purge(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if !strings.Contains(sql, "DELETE FROM summary_history") {
				t.Errorf("SQL should delete from summary_history, got: %s", sql)
			}
			return pgconn.NewCommandTag("DELETE 3"), nil
		},
	}
	s := NewPostgres(db)

	n, err := s.Purge(context.Background(), time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("purged rows: got %d, want 3", n)
	}
}

func TestPostgresStore_PurgeError(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("connection reset")
		},
	}
	s := NewPostgres(db)

	if _, err := s.Purge(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Migrate / HealthCheck
// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	var gotSQL string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.CommandTag{}, nil
		},
	}
	s := NewPostgres(db)

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS summary_history") {
		t.Errorf("migrate should create summary_history, got: %s", gotSQL)
	}
}

func TestPostgresStore_HealthCheck(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*(dest[0].(*int)) = 1
				return nil
			}}
		},
	}
	if err := NewPostgres(db).HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := NewPostgres(&mockDB{}).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error when the probe query fails, got nil")
	}
}
