package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fchimpan/paddle-pilot/internal/action"
	"github.com/fchimpan/paddle-pilot/internal/episode"
	"github.com/fchimpan/paddle-pilot/internal/features"
	"github.com/fchimpan/paddle-pilot/internal/knn"
	"github.com/fchimpan/paddle-pilot/internal/predict"
	"github.com/fchimpan/paddle-pilot/internal/scene"
)

var court = predict.Court{Width: 200, PaddleY: 400}

type fakeRecorder struct {
	calls  int
	last   []scene.Observation
	status scene.Status
	err    error
}

func (f *fakeRecorder) Record(obs []scene.Observation, status scene.Status) (string, error) {
	f.calls++
	f.last = obs
	f.status = status
	return "episode.json", f.err
}

type fixedClassifier struct {
	label action.Label
	seen  [][]float64
}

func (f *fixedClassifier) Predict(v []float64) action.Label {
	f.seen = append(f.seen, append([]float64(nil), v...))
	return f.label
}

func waiting(bx float64) scene.Snapshot {
	return scene.Snapshot{
		Status:   scene.StatusAlive,
		Ball:     scene.Point{X: bx, Y: 395},
		Platform: scene.Point{X: bx - 20, Y: 400},
	}
}

func flying(bx, by, px float64) scene.Snapshot {
	return scene.Snapshot{
		Status:     scene.StatusAlive,
		Ball:       scene.Point{X: bx, Y: by},
		Platform:   scene.Point{X: px, Y: 400},
		BallServed: true,
	}
}

func over(status scene.Status) scene.Snapshot {
	return scene.Snapshot{Status: status, BallServed: true}
}

func TestUpdate_ServesBeforeFlight(t *testing.T) {
	t.Parallel()

	p := New(Config{Court: court, Serve: ServeLeft, Recorder: &fakeRecorder{}})
	for i := 0; i < 3; i++ {
		if got := p.Update(waiting(100)); got != action.ServeLeft {
			t.Fatalf("tick %d: expected serve left, got %q", i, got)
		}
	}
	if p.State() != AwaitingServe {
		t.Fatalf("expected awaiting serve, got %s", p.State())
	}
	if len(p.Observations()) != 0 {
		t.Fatalf("serve ticks must not be recorded")
	}
}

func TestUpdate_RandomServeIsSeeded(t *testing.T) {
	t.Parallel()

	run := func() []action.Command {
		p := New(Config{Court: court, Serve: ServeRandom, Seed: 7})
		var out []action.Command
		for i := 0; i < 32; i++ {
			out = append(out, p.Update(waiting(100)))
		}
		return out
	}
	a, b := run(), run()
	sawLeft, sawRight := false, false
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d: same seed gave %q and %q", i, a[i], b[i])
		}
		sawLeft = sawLeft || a[i] == action.ServeLeft
		sawRight = sawRight || a[i] == action.ServeRight
	}
	if !sawLeft || !sawRight {
		t.Fatalf("expected both serve directions over 32 ticks, got %v", a)
	}
}

func TestUpdate_ThresholdRule(t *testing.T) {
	t.Parallel()

	p := New(Config{Court: court, PaddleWidth: 40, Serve: ServeLeft})
	p.Update(waiting(100))

	// Previous ball (100,395) -> (90,370) is moving up: no landing, idle toward
	// the center (100). Paddle center 70+20=90 < 100.
	if got := p.Update(flying(90, 370, 70)); got != action.MoveRight {
		t.Fatalf("expected move right toward center, got %q", got)
	}
	if _, ok := p.LastLanding(); ok {
		t.Fatalf("expected unknown landing while rising")
	}

	// (90,370) -> (100,380): landing 120. Paddle center 130 > 120.
	if got := p.Update(flying(100, 380, 110)); got != action.MoveLeft {
		t.Fatalf("expected move left, got %q", got)
	}
	if l, ok := p.LastLanding(); !ok || l != 120 {
		t.Fatalf("expected landing 120, got %v %v", l, ok)
	}

	// (100,380) -> (110,390): landing 120. Paddle center 100 < 120.
	if got := p.Update(flying(110, 390, 80)); got != action.MoveRight {
		t.Fatalf("expected move right, got %q", got)
	}

	// (110,390) -> (110,395): vertical fall, landing 110. Paddle center 110.
	if got := p.Update(flying(110, 395, 90)); got != action.Hold {
		t.Fatalf("expected hold, got %q", got)
	}
}

func TestUpdate_IdleTargetOverride(t *testing.T) {
	t.Parallel()

	idle := 10.0
	p := New(Config{Court: court, Serve: ServeLeft, IdleX: &idle})
	p.Update(waiting(100))
	if got := p.Update(flying(90, 370, 70)); got != action.MoveLeft {
		t.Fatalf("expected move left toward idle x 10, got %q", got)
	}
}

func TestUpdate_RecordsInFlightTicks(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: rec})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	p.Update(flying(100, 380, 110))

	obs := p.Observations()
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].PredictedX != nil {
		t.Fatalf("rising ball must record an unknown landing, got %v", *obs[0].PredictedX)
	}
	if obs[1].PredictedX == nil || *obs[1].PredictedX != 120 {
		t.Fatalf("expected recorded landing 120, got %v", obs[1].PredictedX)
	}
	if obs[0].Command != action.MoveRight || obs[1].Command != action.MoveLeft {
		t.Fatalf("recorded commands mismatch: %q %q", obs[0].Command, obs[1].Command)
	}
}

func TestUpdate_JitterDoesNotChangeRecordedLanding(t *testing.T) {
	t.Parallel()

	p := New(Config{Court: court, Serve: ServeLeft, Recorder: &fakeRecorder{}, Jitter: 10, Seed: 3})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	p.Update(flying(100, 380, 110))

	obs := p.Observations()
	if obs[1].PredictedX == nil || *obs[1].PredictedX != 120 {
		t.Fatalf("expected raw landing 120, got %v", obs[1].PredictedX)
	}
}

func TestUpdate_PassFlushesThenResets(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: rec})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	p.Update(flying(100, 380, 110))

	if got := p.Update(over(scene.StatusGamePass)); got != action.Reset {
		t.Fatalf("expected reset, got %q", got)
	}
	if rec.calls != 1 || len(rec.last) != 2 || rec.status != scene.StatusGamePass {
		t.Fatalf("unexpected flush: calls=%d len=%d status=%s", rec.calls, len(rec.last), rec.status)
	}
	if p.State() != AwaitingServe || len(p.Observations()) != 0 {
		t.Fatalf("expected a fresh episode after terminal tick")
	}
}

func TestUpdate_FlatPathStillFlushes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: episode.NewWriter(dir)})
	p.Update(waiting(100))
	p.Update(flying(0, 0, 80))
	p.Update(flying(100, 1e-308, 80))
	p.Update(over(scene.StatusGamePass))

	paths, err := episode.Discover([]string{dir})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected one episode file, got %v", paths)
	}
	obs, err := episode.Load(paths[0])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[1].PredictedX != nil {
		t.Fatalf("expected no landing for a flat path, got %v", *obs[1].PredictedX)
	}
}

func TestUpdate_LossDiscardsByDefault(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: rec})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))

	if got := p.Update(over(scene.StatusGameOver)); got != action.Reset {
		t.Fatalf("expected reset, got %q", got)
	}
	if rec.calls != 0 {
		t.Fatalf("loss must not be flushed")
	}
	if len(p.Observations()) != 0 {
		t.Fatalf("loss observations must be discarded")
	}
}

func TestUpdate_KeepLosses(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: rec, KeepLosses: true})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	p.Update(over(scene.StatusGameOver))

	if rec.calls != 1 || rec.status != scene.StatusGameOver {
		t.Fatalf("expected loss to be flushed, calls=%d status=%s", rec.calls, rec.status)
	}
}

func TestUpdate_FlushFailureStillResets(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{err: errors.New("disk full")}
	p := New(Config{Court: court, Serve: ServeLeft, Recorder: rec})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))

	if got := p.Update(over(scene.StatusGamePass)); got != action.Reset {
		t.Fatalf("expected reset despite flush error, got %q", got)
	}
	if got := p.Update(waiting(100)); got != action.ServeLeft {
		t.Fatalf("expected policy to keep playing, got %q", got)
	}
}

func TestReset_ClearsEpisode(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 50} {
		p := New(Config{Court: court, Serve: ServeLeft, Recorder: &fakeRecorder{}})
		p.Update(waiting(100))
		for i := 0; i < n; i++ {
			p.Update(flying(100, float64(10+i), 80))
		}
		p.Reset()
		if len(p.Observations()) != 0 {
			t.Fatalf("n=%d: expected empty buffer after reset", n)
		}
		if p.prevBall != nil || p.lastObs != nil {
			t.Fatalf("n=%d: expected no ball history after reset", n)
		}
		if p.State() != AwaitingServe {
			t.Fatalf("n=%d: expected awaiting serve, got %s", n, p.State())
		}
	}
}

func TestUpdate_ResetForgetsBallHistory(t *testing.T) {
	t.Parallel()

	p := New(Config{Court: court, Serve: ServeLeft})
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	p.Reset()

	// Without history the first in-flight tick cannot predict anything.
	p.Update(flying(100, 380, 110))
	if _, ok := p.LastLanding(); ok {
		t.Fatalf("expected no landing on the first tick after reset")
	}
}

func TestUpdate_ClassifierChoosesCommand(t *testing.T) {
	t.Parallel()

	clf := &fixedClassifier{label: action.LabelHold}
	p := New(Config{Court: court, Serve: ServeLeft, Classifier: clf, Recorder: &fakeRecorder{}})
	if !p.HasClassifier() {
		t.Fatalf("expected classifier mode")
	}
	p.Update(waiting(100))
	p.Update(flying(90, 370, 70))
	got := p.Update(flying(100, 380, 110))
	if got != action.Hold {
		t.Fatalf("expected classifier label hold, got %q", got)
	}

	if len(clf.seen) != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", len(clf.seen))
	}
	// First in-flight tick: no recorded predecessor, landing unknown -> paddle x.
	want0 := []float64{90, 370, 70, 0, 0, 70}
	want1 := []float64{100, 380, 110, 10, 10, 120}
	for i, want := range [][]float64{want0, want1} {
		for j := range want {
			if clf.seen[i][j] != want[j] {
				t.Fatalf("call %d: features %v, want %v", i, clf.seen[i], want)
			}
		}
	}

	// Training rebuilds the same vectors from the recorded episode.
	obs := p.Observations()
	for i := range obs {
		var prev *scene.Observation
		if i > 0 {
			prev = &obs[i-1]
		}
		v := features.Build(obs[i], prev)
		for j := range v {
			if v[j] != clf.seen[i][j] {
				t.Fatalf("tick %d: train vector %v differs from play vector %v", i, v, clf.seen[i])
			}
		}
	}
}

func TestLoadClassifier_FallsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if c := LoadClassifier(filepath.Join(dir, "missing.json")); c != nil {
		t.Fatalf("expected nil classifier for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c := LoadClassifier(bad); c != nil {
		t.Fatalf("expected nil classifier for corrupt file")
	}

	if c := LoadClassifier(""); c != nil {
		t.Fatalf("expected nil classifier for empty path")
	}

	p := New(Config{Court: court, Serve: ServeLeft, Classifier: LoadClassifier(bad)})
	if p.HasClassifier() {
		t.Fatalf("expected threshold mode after failed load")
	}
}

func TestLoadClassifier_Loads(t *testing.T) {
	t.Parallel()

	m, err := knn.Fit([][]float64{{0, 0, 0, 0, 0, 0}}, []action.Label{action.LabelRight}, 1)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := knn.Save(path, m); err != nil {
		t.Fatal(err)
	}

	p := New(Config{Court: court, Serve: ServeLeft, Classifier: LoadClassifier(path)})
	if !p.HasClassifier() {
		t.Fatalf("expected classifier mode")
	}
	p.Update(waiting(100))
	if got := p.Update(flying(90, 370, 70)); got != action.MoveRight {
		t.Fatalf("expected model output move right, got %q", got)
	}
}

func TestParseServe(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]ServeStrategy{"": ServeRandom, "random": ServeRandom, "LEFT": ServeLeft, " right ": ServeRight} {
		got, err := ParseServe(in)
		if err != nil || got != want {
			t.Fatalf("ParseServe(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseServe("up"); err == nil {
		t.Fatalf("expected error for invalid strategy")
	}
}
