package game

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/handbow/internal/bow"
	"github.com/ayusman/handbow/internal/control"
	"github.com/ayusman/handbow/internal/geom"
	"github.com/ayusman/handbow/internal/physics"
	"github.com/ayusman/handbow/internal/scoring"
)

// mouse builds a trigger sample pulled back by (dx, dy) from a fixed press point.
func mouse(dx, dy float64, down bool) control.Sample {
	origin := geom.Vec2{X: 400, Y: 400}
	cur := geom.Vec2{X: origin.X - dx, Y: origin.Y + dy}
	p := control.PullState{Origin: origin, Current: cur, Latched: down}
	p.Distance = p.Aim().Len()
	p.Angle = p.Aim().ScreenAngle()
	return control.Sample{Position: cur, Source: control.KindMouse, Valid: true, Pressed: down, Pull: p}
}

// shot is a press, a draw and a let-go.
func shot() []control.Sample {
	return []control.Sample{
		mouse(0, 0, true),
		mouse(150, 30, true),
		mouse(150, 30, false),
	}
}

func tickAll(s *Session, dt float64, samples []control.Sample) []Event {
	var events []Event
	for _, smp := range samples {
		events = append(events, s.Tick(smp, dt)...)
	}
	return events
}

func count(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func find(events []Event, kind EventKind) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

// settleFlight ticks with an idle sample until the arrow comes down.
func settleFlight(t *testing.T, s *Session) Event {
	t.Helper()
	idle := mouse(0, 0, false)
	for i := 0; i < 10000; i++ {
		if hit, ok := find(s.Tick(idle, physics.DefaultStep), EventHit); ok {
			return hit
		}
	}
	t.Fatal("arrow never came down")
	return Event{}
}

func TestSession_NewDefaults(t *testing.T) {
	s := NewSession(DefaultConfig())

	if s.Score() != 0 {
		t.Errorf("Score() = %d, want 0", s.Score())
	}
	if s.ArrowsRemaining() != 10 {
		t.Errorf("ArrowsRemaining() = %d, want 10", s.ArrowsRemaining())
	}
	snap := s.Snapshot()
	if snap.Arrow != nil {
		t.Error("fresh session should have no arrow")
	}
	if len(snap.Target.Rings) != 5 {
		t.Errorf("target rings = %d, want 5", len(snap.Target.Rings))
	}
}

func TestSession_ShotLaunchesArrow(t *testing.T) {
	s := NewSession(DefaultConfig())

	events := tickAll(s, 0, shot())
	if count(events, EventDrawStarted) != 1 || count(events, EventReleased) != 1 {
		t.Fatalf("events = %+v, want one draw and one release", events)
	}
	if s.ArrowsRemaining() != 9 {
		t.Errorf("ArrowsRemaining() = %d, want 9", s.ArrowsRemaining())
	}

	snap := s.Snapshot()
	if snap.Arrow == nil {
		t.Fatal("snapshot should include the arrow in flight")
	}
	if len(snap.Arrow.Trail) == 0 {
		t.Error("arrow trail should not be empty")
	}
}

func TestSession_ReleasedShowsForOneSnapshot(t *testing.T) {
	s := NewSession(DefaultConfig())
	events := tickAll(s, 0, shot())
	released, ok := find(events, EventReleased)
	if !ok {
		t.Fatal("no release")
	}

	snap := s.Snapshot()
	if snap.Bow.Phase != bow.Released {
		t.Errorf("snapshot phase = %v, want released", snap.Bow.Phase)
	}
	if snap.Bow.Power != released.Power || snap.Bow.Angle != released.Angle {
		t.Errorf("snapshot bow = %+v, want the released shot %+v", snap.Bow, released)
	}
	if s.Bow().Phase != bow.Idle {
		t.Errorf("machine phase = %v, want idle in the release tick", s.Bow().Phase)
	}

	s.Tick(mouse(0, 0, false), physics.DefaultStep)
	if phase := s.Snapshot().Bow.Phase; phase != bow.Idle {
		t.Errorf("phase one tick later = %v, want idle", phase)
	}
}

func TestSession_HitIsScored(t *testing.T) {
	s := NewSession(DefaultConfig())
	tickAll(s, 0, shot())

	hit := settleFlight(t, s)
	want := scoring.Score(hit.Position, s.Target())
	if hit.Points != want {
		t.Errorf("hit points = %d, want %d", hit.Points, want)
	}
	if s.Score() != want {
		t.Errorf("Score() = %d, want %d", s.Score(), want)
	}
	snap := s.Snapshot()
	if snap.Arrow != nil {
		t.Error("arrow should be cleared after scoring")
	}
	if snap.LastHit == nil || snap.LastHit.Points != want {
		t.Errorf("LastHit = %+v, want points %d", snap.LastHit, want)
	}
}

func TestSession_CenterHitScoresTen(t *testing.T) {
	// Fly the same shot once to find where it lands, then put the target there.
	trial := NewSession(DefaultConfig())
	released, ok := find(tickAll(trial, 0, shot()), EventReleased)
	if !ok {
		t.Fatal("trial shot did not release")
	}

	cfg := DefaultConfig()
	cfg.Physics.BoardX = 0
	engine := physics.New(cfg.Physics)
	arrow := engine.Launch(released.Angle, released.Power)
	var out physics.Outcome
	for arrow.Alive {
		out = engine.Advance(arrow, physics.DefaultStep)
	}
	if out.Status != physics.Landed {
		t.Fatalf("trial outcome = %v, want landed", out.Status)
	}

	target, err := scoring.NewTarget(out.Position, scoring.DefaultRings)
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}
	cfg.Target = target
	s := NewSession(cfg)

	tickAll(s, 0, shot())
	hit := settleFlight(t, s)
	if hit.Points != 10 {
		t.Errorf("points = %d at %v, want 10", hit.Points, hit.Position)
	}
}

func TestSession_AmmoConservation(t *testing.T) {
	s := NewSession(DefaultConfig())

	var events []Event
	for i := 0; i < 11; i++ {
		events = append(events, tickAll(s, 0, shot())...)
	}

	if got := count(events, EventReleased); got != 10 {
		t.Errorf("released %d arrows, want 10", got)
	}
	if got := count(events, EventAmmoDepleted); got != 1 {
		t.Errorf("ammo_depleted fired %d times, want 1", got)
	}
	if s.ArrowsRemaining() != 0 {
		t.Errorf("ArrowsRemaining() = %d, want 0", s.ArrowsRemaining())
	}

	// Move the last arrow off the bow, then shoot again: a replacement
	// would be back at the origin.
	s.Tick(mouse(0, 0, false), physics.DefaultStep)
	before := s.Snapshot().Arrow
	tickAll(s, 0, shot())
	after := s.Snapshot().Arrow
	if before == nil || after == nil {
		t.Fatal("the last arrow should still be in flight")
	}
	if before.Position != after.Position || len(before.Trail) != len(after.Trail) {
		t.Error("release with an empty quiver should be a no-op")
	}
}

func TestSession_NewShotReplacesArrowInFlight(t *testing.T) {
	s := NewSession(DefaultConfig())

	tickAll(s, physics.DefaultStep, shot())
	first := s.Snapshot().Arrow
	tickAll(s, 0, shot())
	second := s.Snapshot().Arrow

	if first == nil || second == nil {
		t.Fatal("expected an arrow in flight after each shot")
	}
	if len(second.Trail) != 1 {
		t.Errorf("replacement trail length = %d, want a fresh arrow", len(second.Trail))
	}
	if s.ArrowsRemaining() != 8 {
		t.Errorf("ArrowsRemaining() = %d, want 8", s.ArrowsRemaining())
	}
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(DefaultConfig())
	for i := 0; i < 10; i++ {
		tickAll(s, 0, shot())
	}
	s.Tick(mouse(0, 0, true), 0)
	s.Tick(mouse(100, 0, true), 0)

	ev := s.Reset()
	if ev.Kind != EventReset {
		t.Errorf("Reset() event = %v, want reset", ev.Kind)
	}
	if s.Score() != 0 || s.ArrowsRemaining() != 10 {
		t.Errorf("after Reset() score=%d arrows=%d, want 0 and 10", s.Score(), s.ArrowsRemaining())
	}
	snap := s.Snapshot()
	if snap.Arrow != nil || snap.Bow.Phase.String() != "idle" {
		t.Errorf("after Reset() snapshot = %+v", snap)
	}
}

func TestSession_AbandonedDraw(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bow.AbandonTicks = 2
	s := NewSession(cfg)

	lost := control.Sample{Source: control.KindCamera}
	camera := mouse(100, 0, false)
	camera.Source = control.KindCamera

	events := tickAll(s, 0, []control.Sample{camera, lost, lost, lost})
	if count(events, EventAbandoned) != 1 {
		t.Errorf("events = %+v, want one abandoned", events)
	}
	if count(events, EventReleased) != 0 {
		t.Error("abandoned draw must not release")
	}
	if s.ArrowsRemaining() != 10 {
		t.Errorf("ArrowsRemaining() = %d, want 10", s.ArrowsRemaining())
	}
}

func TestSnapshot_JSON(t *testing.T) {
	s := NewSession(DefaultConfig())
	tickAll(s, 0, shot())

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"bow", "pull", "arrow", "score", "arrows_remaining", "target"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("snapshot JSON missing %q", key)
		}
	}
	phase := decoded["bow"].(map[string]any)["phase"]
	if phase != "idle" {
		t.Errorf("bow phase = %v, want idle", phase)
	}
}

func TestEventKind_Valid(t *testing.T) {
	if !EventHit.Valid() {
		t.Error("hit should be valid")
	}
	if EventKind("explode").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
