package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
	_ "github.com/nerrad567/gray-logic-venstar/migrations" // Registers embedded migrations
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecordCommand_GeneratesIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)

	rec := &CommandRecord{
		DeviceID:   "hallway",
		Command:    thermostat.CommandSetMode,
		Parameters: map[string]any{"mode": "heat"},
		Source:     "mqtt",
		Status:     StatusCompleted,
	}
	if err := repo.RecordCommand(context.Background(), rec); err != nil {
		t.Fatalf("RecordCommand() error = %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Errorf("ID/CreatedAt not generated: %+v", rec)
	}

	list, err := repo.ListCommands(context.Background(), CommandFilter{DeviceID: "hallway"})
	if err != nil {
		t.Fatalf("ListCommands() error = %v", err)
	}
	if list.Total != 1 || len(list.Commands) != 1 {
		t.Fatalf("Total = %d, len = %d, want 1", list.Total, len(list.Commands))
	}
	got := list.Commands[0]
	if got.ID != rec.ID || got.Parameters["mode"] != "heat" || got.Error != "" {
		t.Errorf("round-tripped record = %+v", got)
	}
}

func TestListCommands_FilterAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	records := []CommandRecord{
		{DeviceID: "hallway", Command: thermostat.CommandSetMode, Source: "api", Status: StatusCompleted, CreatedAt: base},
		{DeviceID: "hallway", Command: thermostat.CommandSetTargetTemp, Source: "api", Status: StatusFailed,
			Error: "thermostat: command not supported in current mode", CreatedAt: base.Add(time.Millisecond)},
		{DeviceID: "office", Command: thermostat.CommandSetFan, Source: "homekit", Status: StatusCompleted, CreatedAt: base.Add(time.Second)},
	}
	for i := range records {
		if err := repo.RecordCommand(ctx, &records[i]); err != nil {
			t.Fatalf("RecordCommand() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    CommandFilter
		wantTotal int
		wantFirst string
	}{
		{"all", CommandFilter{}, 3, thermostat.CommandSetFan},
		{"by device newest first", CommandFilter{DeviceID: "hallway"}, 2, thermostat.CommandSetTargetTemp},
		{"by status", CommandFilter{Status: StatusFailed}, 1, thermostat.CommandSetTargetTemp},
		{"by command", CommandFilter{Command: thermostat.CommandSetMode}, 1, thermostat.CommandSetMode},
		{"offset", CommandFilter{DeviceID: "hallway", Offset: 1}, 2, thermostat.CommandSetMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.ListCommands(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListCommands() error = %v", err)
			}
			if list.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", list.Total, tt.wantTotal)
			}
			if len(list.Commands) == 0 || list.Commands[0].Command != tt.wantFirst {
				t.Errorf("first = %+v, want %s", list.Commands, tt.wantFirst)
			}
		})
	}
}

func TestListCommands_EmptyAndClamped(t *testing.T) {
	repo := newTestRepo(t)

	list, err := repo.ListCommands(context.Background(), CommandFilter{Limit: 5000, Offset: -3})
	if err != nil {
		t.Fatalf("ListCommands() error = %v", err)
	}
	if list.Commands == nil || len(list.Commands) != 0 {
		t.Errorf("Commands = %v, want empty non-nil slice", list.Commands)
	}
	if list.Limit != maxLimit || list.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", list.Limit, list.Offset, maxLimit)
	}
}

func TestRecordAndListStates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := thermostat.NewState(thermostat.DefaultLimits())
	second := first
	second.Mode = thermostat.ModeHeat
	second.TargetTemp = 21.5

	for i, s := range []thermostat.State{first, second} {
		rec := &StateRecord{DeviceID: "hallway", State: s, RecordedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.RecordState(ctx, rec); err != nil {
			t.Fatalf("RecordState() error = %v", err)
		}
	}
	if err := repo.RecordState(ctx, &StateRecord{DeviceID: "office", State: first}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	states, err := repo.ListStates(ctx, "hallway", 0)
	if err != nil {
		t.Fatalf("ListStates() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("len(states) = %d, want 2", len(states))
	}
	if states[0].State != second {
		t.Errorf("newest state = %+v, want %+v", states[0].State, second)
	}
	if !states[1].RecordedAt.Equal(base) {
		t.Errorf("RecordedAt = %v, want %v", states[1].RecordedAt, base)
	}

	limited, err := repo.ListStates(ctx, "hallway", 1)
	if err != nil {
		t.Fatalf("ListStates() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(limited) = %d, want 1", len(limited))
	}
}
