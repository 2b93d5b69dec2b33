package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "dice.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenMemory(t *testing.T) {
	t.Parallel()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.PutPreset(context.Background(), &store.Preset{Name: "a", Notation: "d6"}); err != nil {
		t.Fatalf("put preset: %v", err)
	}
	list, err := s.ListPresets(context.Background())
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d presets, want 1", len(list))
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dice.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SaveRoll(context.Background(), &store.Roll{ID: "r1", Notation: "d6", Canonical: "d6", Total: 3}); err != nil {
		t.Fatalf("save roll: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRoll(context.Background(), "r1"); err != nil {
		t.Fatalf("get roll after reopen: %v", err)
	}
}

func TestSaveGetRollRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	input := &store.Roll{
		ID:         "r1",
		Notation:   "(d6,d8) keep 1",
		Canonical:  "(d6, d8) keep 1",
		Total:      7,
		Dice:       []rolllog.Entry{{Sides: 6, Result: 2}, {Sides: 8, Result: 7}},
		Seed:       -42,
		Preset:     "advantage",
		CreateTime: now,
	}
	if err := s.SaveRoll(ctx, input); err != nil {
		t.Fatalf("save roll: %v", err)
	}

	got, err := s.GetRoll(ctx, "r1")
	if err != nil {
		t.Fatalf("get roll: %v", err)
	}
	if got.Canonical != input.Canonical {
		t.Fatalf("canonical = %q, want %q", got.Canonical, input.Canonical)
	}
	if got.Seed != input.Seed || got.Total != input.Total || got.Preset != input.Preset {
		t.Fatalf("got %+v, want %+v", got, input)
	}
	if len(got.Dice) != 2 || got.Dice[1] != input.Dice[1] {
		t.Fatalf("dice = %v, want %v", got.Dice, input.Dice)
	}
	if !got.CreateTime.Equal(now) {
		t.Fatalf("create time = %v, want %v", got.CreateTime, now)
	}

	if err := s.SaveRoll(ctx, input); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestGetRollNotFound(t *testing.T) {
	t.Parallel()

	_, err := openTempStore(t).GetRoll(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
}

func TestListRollsNewestFirst(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveRoll(ctx, &store.Roll{ID: id, CreateTime: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("save roll: %v", err)
		}
	}

	all, err := s.ListRolls(ctx, 0)
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %v", all)
	}

	limited, err := s.ListRolls(ctx, 2)
	if err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "c" {
		t.Fatalf("unexpected limited list: %v", limited)
	}
}

func TestPresetUpsertAndDelete(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	first, err := s.PutPreset(ctx, &store.Preset{Name: "fireball", Notation: "8d6", Description: "3rd level"})
	if err != nil {
		t.Fatalf("put preset: %v", err)
	}
	second, err := s.PutPreset(ctx, &store.Preset{Name: "fireball", Notation: "9d6"})
	if err != nil {
		t.Fatalf("put preset: %v", err)
	}
	if second.Notation != "9d6" || second.Description != "" {
		t.Fatalf("got %+v", second)
	}
	if !second.CreateTime.Equal(first.CreateTime) {
		t.Fatalf("create time changed on update: %v -> %v", first.CreateTime, second.CreateTime)
	}

	if err := s.DeletePreset(ctx, "fireball"); err != nil {
		t.Fatalf("delete preset: %v", err)
	}
	if err := s.DeletePreset(ctx, "fireball"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
	if _, err := s.GetPreset(ctx, "fireball"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
}
