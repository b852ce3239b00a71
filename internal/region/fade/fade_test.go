/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package fade

import "testing"

func approxEqual(t *testing.T, got, want, eps float32) {
	t.Helper()
	d := got - want
	if d < 0 {
		d = -d
	}
	if d > eps {
		t.Fatalf("got %v, want %v (eps %v)", got, want, eps)
	}
}

func TestLinearFadeInEndpoints(t *testing.T) {
	c := BuildFadeIn(Linear, 1000)
	approxEqual(t, c.EndpointValue(true), GainSmall, 1e-6)
	approxEqual(t, c.EndpointValue(false), 1.0, 1e-6)
}

func TestLinearFadeOutEndpoints(t *testing.T) {
	c := BuildFadeOut(Linear, 1000)
	approxEqual(t, c.EndpointValue(true), 1.0, 1e-6)
	approxEqual(t, c.EndpointValue(false), GainSmall, 1e-6)
}

func TestLinearInverseIsReverse(t *testing.T) {
	out := BuildFadeOut(Linear, 1000)
	inv := BuildInverse(Linear, out, 1000)
	approxEqual(t, inv.EndpointValue(true), GainSmall, 1e-6)
	approxEqual(t, inv.EndpointValue(false), 1.0, 1e-6)
}

func TestConstantPowerEqualPowerProperty(t *testing.T) {
	out := BuildFadeOut(ConstantPower, 1000)
	in := BuildFadeIn(ConstantPower, 1000)

	outSamples := make([]float32, 9)
	inSamples := make([]float32, 9)
	out.SampleInto(outSamples, 0, 1000, 9)
	in.SampleInto(inSamples, 0, 1000, 9)

	for i := range outSamples {
		sum := float64(outSamples[i])*float64(outSamples[i]) + float64(inSamples[i])*float64(inSamples[i])
		if sum < 0.95 || sum > 1.05 {
			t.Fatalf("sample %d: power sum = %v, want ~1", i, sum)
		}
	}
}

func TestFastInverseIsInversePower(t *testing.T) {
	out := BuildFadeOut(Fast, 1000)
	inv := BuildInverse(Fast, out, 1000)

	pts := out.Points()
	invPts := inv.Points()
	if len(pts) != len(invPts) {
		t.Fatalf("len mismatch: %d vs %d", len(pts), len(invPts))
	}
	for i := range pts {
		v := float64(pts[i].Value)
		want := v * v
		got := 1 - float64(invPts[i].Value)*float64(invPts[i].Value)
		if d := got - want; d < -1e-4 || d > 1e-4 {
			t.Fatalf("point %d: inverse^2 = %v, want 1-%v", i, 1-got, want)
		}
	}
}

func TestSymmetricDecaysMonotonically(t *testing.T) {
	c := BuildFadeOut(Symmetric, 1000)
	pts := c.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i].Value > pts[i-1].Value {
			t.Fatalf("not monotone decreasing at %d: %v > %v", i, pts[i].Value, pts[i-1].Value)
		}
	}
	approxEqual(t, pts[0].Value, 1.0, 1e-6)
}

func TestNewDefaultIsDefault(t *testing.T) {
	f := NewDefaultIn(Linear)
	if !f.IsDefault() {
		t.Fatal("expected IsDefault() true right after NewDefault")
	}
	if f.EndTimeSamples() != MinLength {
		t.Fatalf("end = %d, want %d", f.EndTimeSamples(), MinLength)
	}
}

func TestSetLengthClearsDefault(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.SetLength(500, 10000)
	if f.IsDefault() {
		t.Fatal("expected IsDefault() false after SetLength")
	}
	if f.EndTimeSamples() != 500 {
		t.Fatalf("end = %d, want 500", f.EndTimeSamples())
	}
}

func TestSetLengthClampsToRegion(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.SetLength(10000, 100)
	if f.EndTimeSamples() != 99 {
		t.Fatalf("end = %d, want 99 (region length - 1)", f.EndTimeSamples())
	}
}

func TestSetLengthClampsToMin(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.SetLength(1, 10000)
	if f.EndTimeSamples() != MinLength {
		t.Fatalf("end = %d, want %d", f.EndTimeSamples(), MinLength)
	}
}

func TestSuspendDeactivatesDefaultFade(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.Suspend()
	if f.Active() {
		t.Fatal("expected inactive after suspending a default fade")
	}
}

func TestSuspendDoesNotDeactivateNonDefaultFade(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.SetLength(500, 10000)
	f.Suspend()
	if !f.Active() {
		t.Fatal("expected a non-default fade to remain active across suspend")
	}
}

func TestResumeReactivatesOnlyAfterGenuineSuspend(t *testing.T) {
	f := NewDefaultIn(Linear)

	// Resume without a matching Suspend must not reactivate (suspendCount
	// never went above zero).
	f.SetActive(false)
	f.Resume()
	if f.Active() {
		t.Fatal("Resume without prior Suspend must not reactivate")
	}

	f.Suspend()
	f.Resume()
	if !f.Active() {
		t.Fatal("Resume after a balanced Suspend on a default fade must reactivate")
	}
}

func TestNestedSuspendRequiresMatchingResumes(t *testing.T) {
	f := NewDefaultIn(Linear)
	f.Suspend()
	f.Suspend()
	f.Resume()
	if f.Active() {
		t.Fatal("expected still inactive after only one of two resumes")
	}
	f.Resume()
	if !f.Active() {
		t.Fatal("expected active after matching resumes")
	}
}
