package engine

import (
	"errors"
	"math"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry(DefaultDescriptors())
}

func TestNormalizeEndpoints(t *testing.T) {
	r := testRegistry()

	got, err := r.Normalize(0, "sphereRoughness")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Normalize(0): got %f, want 0", got)
	}

	got, err = r.Normalize(127, "sphereRoughness")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("Normalize(127): got %f, want 1", got)
	}
}

func TestNormalize14Bit(t *testing.T) {
	r := testRegistry()

	// shaderPixelate is 14-bit with a custom curve: endpoints still land on 0 and 1
	if got, _ := r.Normalize(0, "shaderPixelate"); got != 0 {
		t.Errorf("14-bit Normalize(0): got %f, want 0", got)
	}
	if got, _ := r.Normalize(16383, "shaderPixelate"); math.Abs(got-1) > 1e-9 {
		t.Errorf("14-bit Normalize(16383): got %f, want 1", got)
	}
}

func TestNormalizeCustomPrecedence(t *testing.T) {
	r := testRegistry()

	// cameraDistance uses a squared curve, so midpoint maps to 0.25 not 0.5
	got, err := r.Normalize(64, "cameraDistance")
	if err != nil {
		t.Fatal(err)
	}
	want := (64.0 / 127.0) * (64.0 / 127.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("custom normalize: got %f, want %f", got, want)
	}
}

func TestNormalizeUnknownTarget(t *testing.T) {
	r := testRegistry()
	if _, err := r.Normalize(64, "nope"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("got err %v, want ErrUnknownTarget", err)
	}
}

func TestApplyDenormalizesAndClamps(t *testing.T) {
	r := testRegistry()

	r.Apply("bloomStrength", 1.0, "test")
	if got := r.Value("bloomStrength"); got != 3 {
		t.Errorf("apply 1.0 to [0,3]: got %f, want 3", got)
	}

	r.Apply("bloomStrength", -0.5, "test")
	if got := r.Value("bloomStrength"); got != 0 {
		t.Errorf("apply -0.5 (clamped): got %f, want 0", got)
	}

	r.Apply("bloomStrength", 2.0, "test")
	if got := r.Value("bloomStrength"); got != 3 {
		t.Errorf("apply 2.0 (clamped): got %f, want 3", got)
	}
}

func TestApplySnapsToStep(t *testing.T) {
	r := testRegistry()

	// lightIntensity: [0,10] step 0.1; norm 0.123 -> 1.23 -> snaps to 1.2
	r.Apply("lightIntensity", 0.123, "test")
	if got := r.Value("lightIntensity"); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("snap: got %f, want 1.2", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	r := testRegistry()

	r.Apply("sphereRoughness", 0.5, "test")
	first := r.Value("sphereRoughness")
	drainFrames(r)

	r.Apply("sphereRoughness", 0.5, "test")
	if got := r.Value("sphereRoughness"); got != first {
		t.Errorf("second apply changed value: got %f, want %f", got, first)
	}
	select {
	case <-r.FrameRequests():
		t.Error("no-op apply must not request a frame")
	default:
	}
}

func TestApplyUnknownTargetDropped(t *testing.T) {
	r := testRegistry()
	before := r.Snapshot()

	r.Apply("doesNotExist", 0.7, "test")

	after := r.Snapshot()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("unknown-target apply mutated %s", before[i].Name)
		}
	}
}

func TestApplyRequestsFrame(t *testing.T) {
	r := testRegistry()
	drainFrames(r)

	r.Apply("shaderMix", 0.9, "test")
	select {
	case <-r.FrameRequests():
	default:
		t.Error("apply should request a frame")
	}
}

func TestToggleBoolAndContinuous(t *testing.T) {
	r := testRegistry()

	r.Toggle("wireframe", "note")
	if got := r.Value("wireframe"); got != 1 {
		t.Errorf("first toggle: got %f, want 1", got)
	}
	r.Toggle("wireframe", "note")
	if got := r.Value("wireframe"); got != 0 {
		t.Errorf("second toggle: got %f, want 0", got)
	}

	// Continuous parameters land mid-range
	r.Toggle("shaderWarp", "note")
	if got := r.Value("shaderWarp"); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("toggle continuous [0,2]: got %f, want 1.0", got)
	}
}

func TestOffsetsStackAndClamp(t *testing.T) {
	r := testRegistry()

	r.Apply("sphereRoughness", 0.5, "test") // base 0.5
	r.SetOffset("sphereRoughness", "anim", 0.3)
	r.SetOffset("sphereRoughness", "audio", 0.1)

	if got := r.Value("sphereRoughness"); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("stacked offsets: got %f, want 0.9", got)
	}
	if got := r.BaseValue("sphereRoughness"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("base must not move: got %f, want 0.5", got)
	}

	// Sum above max clamps
	r.SetOffset("sphereRoughness", "anim", 0.9)
	if got := r.Value("sphereRoughness"); got != 1 {
		t.Errorf("clamped sum: got %f, want 1", got)
	}

	r.ClearOffset("sphereRoughness", "anim")
	r.ClearOffset("sphereRoughness", "audio")
	if got := r.Value("sphereRoughness"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("after clearing offsets: got %f, want base 0.5", got)
	}
}

func TestClearSource(t *testing.T) {
	r := testRegistry()

	r.SetOffset("rotationX", "anim:rotationX", 0.5)
	r.SetOffset("rotationY", "anim:rotationY", 0.5)
	r.SetOffset("rotationX", "audio", 0.2)

	r.ClearSource("audio")
	if got := r.Value("rotationX"); math.Abs(got-(0.2+0.5)) > 1e-9 {
		t.Errorf("rotationX after ClearSource(audio): got %f, want 0.7", got)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	r := testRegistry()

	r.Apply("p5Speed", 1.0, "test")
	r.SetOffset("p5Speed", "anim", 1.0)
	r.Reset()

	if got := r.Value("p5Speed"); got != 1 {
		t.Errorf("after reset: got %f, want default 1", got)
	}
	if got := r.BaseValue("p5Speed"); got != 1 {
		t.Errorf("after reset base: got %f, want 1", got)
	}
}

func TestSnapshotOrderStable(t *testing.T) {
	r := testRegistry()
	snap := r.Snapshot()
	names := r.Names()
	if len(snap) != len(names) {
		t.Fatalf("snapshot len %d != names len %d", len(snap), len(names))
	}
	for i := range snap {
		if snap[i].Name != names[i] {
			t.Errorf("row %d: got %s, want %s", i, snap[i].Name, names[i])
		}
	}
}

func drainFrames(r *Registry) {
	for {
		select {
		case <-r.FrameRequests():
		default:
			return
		}
	}
}
