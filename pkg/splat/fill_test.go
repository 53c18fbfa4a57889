package splat

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Faultbox/splatview/pkg/math"
)

func TestFillArrays(t *testing.T) {
	b := New(2)
	b.SetCenter(0, math.Vec3{X: 1, Y: 2, Z: 3})
	b.SetCenter(1, math.Vec3{X: 4, Y: 5, Z: 6})
	b.SetScale(0, math.Vec3{X: 1, Y: 1, Z: 1})
	b.SetScale(1, math.Vec3{X: 2, Y: 1, Z: 1})
	b.SetColor(0, [4]uint8{255, 0, 51, 255})

	centers := make([]float32, 9)
	b.FillCenterArray(centers, 1, nil)
	if diff := cmp.Diff([]float32{0, 0, 0, 1, 2, 3, 4, 5, 6}, centers); diff != "" {
		t.Errorf("FillCenterArray mismatch (-want +got):\n%s", diff)
	}

	tr := math.Translate(10, 0, 0)
	b.FillCenterArray(centers, 0, &tr)
	if diff := cmp.Diff([]float32{11, 2, 3, 14, 5, 6}, centers[:6]); diff != "" {
		t.Errorf("transformed centers mismatch (-want +got):\n%s", diff)
	}

	colors := make([]float32, 8)
	b.FillColorArray(colors, 0)
	if diff := cmp.Diff([]float32{1, 0, 0.2, 1}, colors[:4]); diff != "" {
		t.Errorf("FillColorArray mismatch (-want +got):\n%s", diff)
	}

	scales := make([]float32, 9)
	b.FillScaleArray(scales, 1)
	if diff := cmp.Diff([]float32{0, 0, 0, 1, 1, 1, 2, 1, 1}, scales); diff != "" {
		t.Errorf("FillScaleArray mismatch (-want +got):\n%s", diff)
	}

	rot := make([]float32, 8)
	b.FillRotationArray(rot, 0)
	if diff := cmp.Diff([]float32{1, 0, 0, 0, 1, 0, 0, 0}, rot); diff != "" {
		t.Errorf("FillRotationArray mismatch (-want +got):\n%s", diff)
	}

	cc := make([]float32, 2*CenterCovarianceFloats)
	b.FillCenterCovarianceArray(cc, 0, nil)
	want := []float32{1, 2, 3, 1, 0, 0, 1, 0, 1, 4, 5, 6, 4, 0, 0, 1, 0, 1}
	if diff := cmp.Diff(want, cc); diff != "" {
		t.Errorf("FillCenterCovarianceArray mismatch (-want +got):\n%s", diff)
	}

	sc := math.Scale(2, 2, 2)
	cov := make([]float32, 12)
	b.FillCovarianceArray(cov, 0, &sc)
	if diff := cmp.Diff([]float32{4, 0, 0, 4, 0, 4}, cov[:6]); diff != "" {
		t.Errorf("scaled covariance mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileParseFile(t *testing.T) {
	b := NewQuantized(300, QuantizeOptions{BucketSize: 64})
	for i := 0; i < b.Count(); i++ {
		b.SetColor(i, [4]uint8{uint8(i), uint8(i >> 8), 7, 255})
	}

	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "scene.splat")
		if err := b.WriteFile(path, compress); err != nil {
			t.Fatalf("WriteFile(compress=%v) failed: %v", compress, err)
		}
		got, err := ParseFile(path)
		if err != nil {
			t.Fatalf("ParseFile(compress=%v) failed: %v", compress, err)
		}
		if diff := cmp.Diff(b.Bytes(), got.Bytes()); diff != "" {
			t.Errorf("round trip (compress=%v) mismatch (-want +got):\n%s", compress, diff)
		}
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.splat")); err == nil {
		t.Error("ParseFile on a missing file should fail")
	}
}
