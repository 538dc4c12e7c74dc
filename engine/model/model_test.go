package model

import (
	"math"
	"testing"
)

func TestTypedArrayRoundTrip(t *testing.T) {
	tests := []struct {
		ct   ComponentType
		vals []float64
	}{
		{ComponentInt8, []float64{-128, 0, 127}},
		{ComponentUint8, []float64{0, 200, 255}},
		{ComponentInt16, []float64{-32768, 5, 32767}},
		{ComponentUint16, []float64{0, 1000, 65535}},
		{ComponentUint32, []float64{0, 70000, 4294967295}},
		{ComponentFloat32, []float64{-1.5, 0.25, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.ct.String(), func(t *testing.T) {
			a := NewTypedArray(tt.ct, len(tt.vals))
			for i, v := range tt.vals {
				a.Set(i, v)
			}
			if a.Len() != len(tt.vals) {
				t.Fatalf("Len = %d, want %d", a.Len(), len(tt.vals))
			}
			for i, v := range tt.vals {
				if got := a.At(i); got != v {
					t.Errorf("At(%d) = %v, want %v", i, got, v)
				}
			}
		})
	}
}

func TestViewSharesAndCloneOwns(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	view := ViewTypedArray(ComponentUint8, raw)
	if !view.Shared() {
		t.Fatal("view should be shared")
	}

	view.Set(0, 9)
	if raw[0] != 9 {
		t.Fatal("view should write through to the backing bytes")
	}

	clone := view.Clone()
	clone.Set(1, 42)
	if clone.Shared() || raw[1] != 2 {
		t.Fatal("clone must own its bytes")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(-128, ComponentInt8); got != -1 {
		t.Errorf("Normalize(-128, int8) = %v, want -1", got)
	}
	if got := Normalize(255, ComponentUint8); got != 1 {
		t.Errorf("Normalize(255, uint8) = %v, want 1", got)
	}
	if got := Normalize(32767, ComponentInt16); got != 1 {
		t.Errorf("Normalize(32767, int16) = %v, want 1", got)
	}
	if _, err := NormalizationDivisor(ComponentFloat32); err == nil {
		t.Error("float32 has no normalization divisor")
	}
}

func TestInterleavedAttribute(t *testing.T) {
	// two vertices of [x y z u v]
	data := FromSlice(ComponentFloat32, []float32{0, 1, 2, 10, 11, 3, 4, 5, 12, 13})
	ib := NewInterleavedBuffer(data, 5)
	pos := NewInterleavedBufferAttribute(ib, 3, 0, false)
	uv := NewInterleavedBufferAttribute(ib, 2, 3, false)

	if pos.Count() != 2 || uv.Count() != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", pos.Count(), uv.Count())
	}
	if got := uv.Component(1, 1); got != 13 {
		t.Fatalf("uv(1).y = %v, want 13", got)
	}

	packed := pos.Clone()
	want := []float32{0, 1, 2, 3, 4, 5}
	for i, v := range packed.Float32s() {
		if v != want[i] {
			t.Fatalf("deinterleaved[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestToTrianglesDrawMode(t *testing.T) {
	g := NewGeometry()
	g.SetAttribute("position", NewBufferAttribute(NewTypedArray(ComponentFloat32, 5*3), 3, false))

	strip, err := ToTrianglesDrawMode(g, DrawTriangleStrip)
	if err != nil {
		t.Fatalf("strip conversion failed: %v", err)
	}
	wantStrip := []uint32{0, 1, 2, 3, 2, 1, 2, 3, 4}
	if got := strip.Index.Array().Uint32s(); !equalU32(got, wantStrip) {
		t.Errorf("strip index = %v, want %v", got, wantStrip)
	}

	fan, err := ToTrianglesDrawMode(g, DrawTriangleFan)
	if err != nil {
		t.Fatalf("fan conversion failed: %v", err)
	}
	wantFan := []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4}
	if got := fan.Index.Array().Uint32s(); !equalU32(got, wantFan) {
		t.Errorf("fan index = %v, want %v", got, wantFan)
	}

	if g.Index != nil {
		t.Error("source geometry must not be modified")
	}
	if _, err := ToTrianglesDrawMode(g, DrawLines); err == nil {
		t.Error("lines cannot be converted to triangles")
	}
}

func TestBoundingVolumes(t *testing.T) {
	g := NewGeometry()
	g.SetAttribute("position", NewBufferAttribute(FromSlice(ComponentFloat32, []float32{-1, 0, 0, 1, 0, 0, 0, 2, 0}), 3, false))
	g.ComputeBoundingSphere()

	if g.BoundingBox == nil || g.BoundingBox.Min.X != -1 || g.BoundingBox.Max.Y != 2 {
		t.Fatalf("unexpected bounding box %+v", g.BoundingBox)
	}
	if g.BoundingSphere == nil || math.Abs(g.BoundingSphere.Radius-math.Sqrt(2)) > 1e-9 {
		t.Fatalf("unexpected bounding sphere %+v", g.BoundingSphere)
	}
}

func TestNewMaterialUnlitDropsPBR(t *testing.T) {
	params := DefaultMaterialParams()
	params.Color = [3]float32{1, 0, 0}
	params.EmissiveIntensity = 5
	params.NormalScale = [2]float32{2, 2}

	m := NewMaterial(MaterialBasic, params)
	if m.Color != params.Color {
		t.Errorf("color = %v, want %v", m.Color, params.Color)
	}
	if m.Metalness != 0 || m.Roughness != 0 || m.EmissiveIntensity != 1 || m.NormalScale != [2]float32{1, 1} {
		t.Errorf("unlit material kept PBR fields: %+v", m.MaterialParams)
	}
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
