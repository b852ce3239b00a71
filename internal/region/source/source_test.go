/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package source

import "testing"

func TestMemorySourceRead(t *testing.T) {
	m := NewMemorySource([]float32{0, 1, 2, 3, 4}, 44100)

	buf := make([]float32, 3)
	n, err := m.Read(buf, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	want := []float32{1, 2, 3}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestMemorySourceReadShortAtEnd(t *testing.T) {
	m := NewMemorySource([]float32{0, 1, 2}, 44100)
	buf := make([]float32, 10)
	n, _ := m.Read(buf, 1, 10)
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestMemorySourceReadOutOfRange(t *testing.T) {
	m := NewMemorySource([]float32{0, 1, 2}, 44100)
	buf := make([]float32, 4)
	n, _ := m.Read(buf, 100, 4)
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestMemorySourcePeaks(t *testing.T) {
	m := NewMemorySource([]float32{-1, 0.5, 0.2, -0.8, 0.1, 0.9}, 44100)
	peaks := make([]Peak, 3)
	if err := m.ReadPeaks(peaks, 3, 0, 6, 2); err != nil {
		t.Fatal(err)
	}
	if peaks[0].Min != -1 || peaks[0].Max != 0.5 {
		t.Fatalf("peak 0 = %+v", peaks[0])
	}
	if peaks[1].Min != -0.8 || peaks[1].Max != 0.2 {
		t.Fatalf("peak 1 = %+v", peaks[1])
	}
	if peaks[2].Min != 0.1 || peaks[2].Max != 0.9 {
		t.Fatalf("peak 2 = %+v", peaks[2])
	}
}

func TestTransientNearSkipsOnMiss(t *testing.T) {
	m := NewMemorySource(make([]float32, 100), 44100)
	m.SetTransients([]int64{10, 20, 30})

	if pos, ok := TransientNear(m, 15); !ok || pos != 20 {
		t.Fatalf("got (%d, %v), want (20, true)", pos, ok)
	}
	if _, ok := TransientNear(m, 31); ok {
		t.Fatal("expected no transient at or after 31")
	}
	if pos, ok := TransientNear(m, 0); !ok || pos != 10 {
		t.Fatalf("got (%d, %v), want (10, true)", pos, ok)
	}
}
