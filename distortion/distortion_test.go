// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package distortion

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestCompute_InvalidSize(t *testing.T) {
	for _, size := range []int{-1, 0, 1, MaxSize + 1} {
		_, err := Compute(IdentityModel(), size)
		if !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Compute(size=%d) error = %v, want ErrInvalidSize", size, err)
		}
	}
}

func TestIdentity(t *testing.T) {
	const size = 5
	tables, err := Identity(size)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}

	for c := range tables {
		tab := &tables[c]
		if tab.Size != size || len(tab.Data) != size*size*2 {
			t.Fatalf("channel %d: size %d, len %d", c, tab.Size, len(tab.Data))
		}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				u, v := tab.At(x, y)
				wantU := float32(x) / (size - 1)
				wantV := float32(y) / (size - 1)
				if !approx(u, wantU) || !approx(v, wantV) {
					t.Fatalf("channel %d texel (%d,%d) = (%v,%v), want (%v,%v)", c, x, y, u, v, wantU, wantV)
				}
			}
		}
	}
}

func TestCompute_PerChannel(t *testing.T) {
	m := IdentityModel()
	m.Channels[ChannelRed] = Coefficients{K1: 0.2}
	m.Channels[ChannelGreen] = Coefficients{K1: 0.1}
	m.Channels[ChannelBlue] = Coefficients{}

	tables, err := Compute(m, 9)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// The lens center stays put on every channel.
	for c := range tables {
		u, v := tables[c].At(4, 4)
		if !approx(u, 0.5) || !approx(v, 0.5) {
			t.Errorf("channel %d center = (%v,%v)", c, u, v)
		}
	}

	// Positive K1 pushes the corner outwards, more for larger K1.
	ru, _ := tables[ChannelRed].At(0, 0)
	gu, _ := tables[ChannelGreen].At(0, 0)
	bu, _ := tables[ChannelBlue].At(0, 0)
	if !(ru < gu && gu < bu) {
		t.Errorf("corner u: red %v, green %v, blue %v; want red < green < blue", ru, gu, bu)
	}
	if !approx(bu, 0) {
		t.Errorf("blue corner u = %v, want 0", bu)
	}

	// r^2 = 0.5 at the corner, scale = 1 + 0.2*0.5.
	if want := float32(0.5 - 0.5*1.1); !approx(ru, want) {
		t.Errorf("red corner u = %v, want %v", ru, want)
	}
}

func TestTable_Bytes(t *testing.T) {
	tables, err := Identity(3)
	if err != nil {
		t.Fatal(err)
	}
	tab := &tables[ChannelGreen]

	b := tab.Bytes()
	if len(b) != 3*3*BytesPerTexel {
		t.Fatalf("len(Bytes) = %d", len(b))
	}
	if tab.BytesPerRow() != 3*BytesPerTexel {
		t.Errorf("BytesPerRow = %d", tab.BytesPerRow())
	}

	// Texel (2, 1) holds (1.0, 0.5).
	off := (1*3 + 2) * BytesPerTexel
	u := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	v := math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:]))
	if u != 1 || v != 0.5 {
		t.Errorf("texel (2,1) = (%v,%v), want (1,0.5)", u, v)
	}
}
