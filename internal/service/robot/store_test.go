package robot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-robot-bridge/internal/domain"
	"github.com/park285/cheese-robot-bridge/internal/storage"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	st, err := NewRedisStore("redis://"+mr.Addr()+"/0", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func sampleSnapshot(id string) *Snapshot {
	var grid storage.Grid
	grid.WhiteCapture[0][0] = true
	return &Snapshot{
		SessionUUID: id,
		RobotID:     "arm-1",
		HumanColor:  "white",
		Preset:      "level3",
		Status:      statusActive,
		Moves:       []string{"e2e4", "d7d5", "e4d5"},
		Storage:     grid,
		PendingKind: "capture",
		PendingFile: "/tmp/robot/capture.txt",
		Handshakes:  3,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	st, mr := newRedisStore(t)
	ctx := context.Background()

	if got, err := st.Load(ctx, "arm-1"); err != nil || got != nil {
		t.Fatalf("empty load = %v, %v", got, err)
	}
	if err := st.Save(ctx, sampleSnapshot("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("robot:session:arm-1"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
	got, err := st.Load(ctx, "arm-1")
	if err != nil || got == nil {
		t.Fatalf("load: %v %v", got, err)
	}
	if got.SessionUUID != "s-1" || len(got.Moves) != 3 || got.PendingKind != "capture" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if !got.Storage.WhiteCapture[0][0] || got.Storage.WhiteCapture[0][1] {
		t.Fatalf("storage grid not preserved: %+v", got.Storage)
	}
	if err := st.Delete(ctx, "arm-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := st.Load(ctx, "arm-1"); got != nil {
		t.Fatalf("expected nil after delete")
	}
}

func TestRedisStore_RefusesOtherLiveSession(t *testing.T) {
	st, _ := newRedisStore(t)
	ctx := context.Background()
	if err := st.Save(ctx, sampleSnapshot("s-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Save(ctx, sampleSnapshot("s-2")); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// 같은 세션 갱신은 허용
	next := sampleSnapshot("s-1")
	next.Moves = append(next.Moves, "d8d5")
	if err := st.Save(ctx, next); err != nil {
		t.Fatalf("update same session: %v", err)
	}
	fin := sampleSnapshot("s-1")
	fin.Status = statusFinished
	if err := st.Save(ctx, fin); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := st.Save(ctx, sampleSnapshot("s-2")); err != nil {
		t.Fatalf("save after finish: %v", err)
	}
}

func TestMemoryStore_Conflict(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	snap := sampleSnapshot("s-1")
	if err := st.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap.Moves[0] = "d2d4"
	got, _ := st.Load(ctx, "arm-1")
	if got.Moves[0] != "e2e4" {
		t.Fatalf("store must copy moves, got %v", got.Moves)
	}
	if err := st.Save(ctx, sampleSnapshot("s-2")); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected opts: %+v", opts)
	}
	if _, err := ParseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestMemoryRepository_DuplicateAndRecent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		g := sampleGame(id, now.Add(time.Duration(i)*time.Minute))
		if _, err := repo.InsertGame(ctx, g); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if _, err := repo.InsertGame(ctx, sampleGame("a", now)); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	recent, err := repo.GetRecentGames(ctx, "arm-1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].SessionUUID != "c" || recent[1].SessionUUID != "b" {
		t.Fatalf("unexpected order: %+v", recent)
	}
	got, err := repo.GetGameBySession(ctx, "b")
	if err != nil || got == nil || got.SessionUUID != "b" {
		t.Fatalf("by session: %v %v", got, err)
	}
}

func TestGameSQLPlaceholdersMatchColumns(t *testing.T) {
	if strings.Count(insertGameSQL, "$") != len(gameColumns) {
		t.Fatalf("insert placeholders = %d, columns = %d", strings.Count(insertGameSQL, "$"), len(gameColumns))
	}
	if !strings.Contains(insertGameSQL, "$15) ON CONFLICT (session_uuid) DO NOTHING RETURNING id") {
		t.Fatalf("insert = %s", insertGameSQL)
	}
	var g domain.RobotGame
	var dur sql.NullInt64
	if n := len(gameFields(&g, &dur)); n != len(gameColumns) {
		t.Fatalf("fields = %d, columns = %d", n, len(gameColumns))
	}
	if !strings.HasPrefix(selectGameSQL, "SELECT id, session_uuid, robot_id") {
		t.Fatalf("select = %s", selectGameSQL)
	}
}

func TestDerefExecArgs(t *testing.T) {
	g := domain.RobotGame{SessionUUID: "s", Handshakes: 3, MovesUCI: []string{"e2e4"}}
	var dur sql.NullInt64
	args := gameFields(&g, &dur)
	if got := deref(args[0]); got != "s" {
		t.Fatalf("session arg = %#v", got)
	}
	if got := deref(args[9]); got != 3 {
		t.Fatalf("handshakes arg = %#v", got)
	}
	if _, ok := deref(args[6]).(driver.Valuer); !ok {
		t.Fatalf("moves arg should stay a driver.Valuer, got %T", deref(args[6]))
	}
}
