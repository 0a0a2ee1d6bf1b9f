package cosmo

import (
	"math"
	"testing"
)

func TestComovingDistance_Monotone(t *testing.T) {
	p := Default()
	prev := 0.0
	for z := 0.1; z <= 3.0; z += 0.1 {
		d := p.ComovingDistance(z)
		if d <= prev {
			t.Fatalf("distance not increasing at z=%.1f: %g <= %g", z, d, prev)
		}
		prev = d
	}
}

func TestComovingDistance_Zero(t *testing.T) {
	p := Default()
	if d := p.ComovingDistance(0); d != 0 {
		t.Errorf("ComovingDistance(0) = %g, want 0", d)
	}
	if d := p.ComovingDistance(-0.5); d != 0 {
		t.Errorf("ComovingDistance(-0.5) = %g, want 0", d)
	}
}

func TestComovingDistance_HubbleLawLimit(t *testing.T) {
	// at small z the distance approaches c z / H0
	p := Default()
	const z = 1e-3
	want := SpeedOfLight * z / p.H0
	got := p.ComovingDistance(z)
	if math.Abs(got-want)/want > 1e-3 {
		t.Errorf("ComovingDistance(%g) = %g, want ~%g", z, got, want)
	}
}

func TestComovingDistance_FiducialValue(t *testing.T) {
	// for H0=70, OmegaM=0.3 the comoving distance to z=1 is ~3300 Mpc
	p := Params{H0: 70, OmegaM: 0.3}
	d := p.ComovingDistance(1.0)
	if d < 3200 || d > 3450 {
		t.Errorf("ComovingDistance(1) = %g Mpc, want ~3300", d)
	}
}
