package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestSpotCone(t *testing.T) {
	l := NewLight(LightTypeSpot, WithSpotCone(0, math32.Pi/4))
	if l.Penumbra != 1 {
		t.Fatalf("penumbra = %v, want 1", l.Penumbra)
	}
	if l.Decay != 2 {
		t.Fatalf("decay = %v, want 2", l.Decay)
	}

	l = NewLight(LightTypeSpot, WithSpotCone(0.2, 0.4))
	if math32.Abs(l.InnerConeAngle()-0.2) > 1e-6 {
		t.Fatalf("inner cone = %v, want 0.2", l.InnerConeAngle())
	}
}

func TestTargetChild(t *testing.T) {
	if NewLight(LightTypePoint).Target != nil {
		t.Fatal("point lights have no target")
	}

	d := NewLight(LightTypeDirectional)
	if d.Target == nil || len(d.Children()) != 1 {
		t.Fatal("directional light needs a target child")
	}
	if !d.Direction().ApproxEqual(mgl32.Vec3{0, 0, -1}) {
		t.Fatalf("direction = %v, want -Z", d.Direction())
	}
}

func TestCloneKeepsOwnTarget(t *testing.T) {
	l := NewLight(LightTypeSpot)
	for _, recursive := range []bool{true, false} {
		c := l.Clone(recursive).(*Light)
		if c.Target == nil || c.Target == l.Target {
			t.Fatalf("recursive=%v: clone must own a distinct target", recursive)
		}
		if c.Target.Parent() != c {
			t.Fatalf("recursive=%v: clone target must be its child", recursive)
		}
		if len(c.Children()) != 1 {
			t.Fatalf("recursive=%v: clone has %d children, want 1", recursive, len(c.Children()))
		}
	}
}

func TestParseLightType(t *testing.T) {
	if _, ok := ParseLightType("area"); ok {
		t.Fatal("area lights are not punctual")
	}
	if lt, ok := ParseLightType("spot"); !ok || lt != LightTypeSpot {
		t.Fatal("spot should parse")
	}
}
