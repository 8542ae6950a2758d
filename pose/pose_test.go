package pose

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestFromRecord(t *testing.T) {
	p, err := FromRecord([]float64{0.3, 0.1, 0.4, 0, 0, 0, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 0.3, Y: 0.1, Z: 0.4})

	wxyz := WXYZ(p)
	test.That(t, wxyz[0], test.ShouldAlmostEqual, 1.0)
	test.That(t, wxyz[1], test.ShouldAlmostEqual, 0.0)

	_, err = FromRecord([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "needs 7 values")

	_, err = FromRecord([]float64{1, 2, 3, 0, 0, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromRecord([]float64{1, math.NaN(), 3, 0, 0, 0, 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRecordOrdering(t *testing.T) {
	rec := []float64{0.30871, 0.000905, 0.48742, 0.9994651, -0.00187451, 0.0307489, -0.01097748}
	p, err := FromRecord(rec)
	test.That(t, err, test.ShouldBeNil)

	out := ToRecord(p)
	for i := range rec {
		test.That(t, out[i], test.ShouldAlmostEqual, rec[i], 1e-6)
	}

	// qw leads in the command ordering
	wxyz := WXYZ(p)
	test.That(t, wxyz[0], test.ShouldAlmostEqual, rec[6], 1e-6)
	test.That(t, wxyz[1], test.ShouldAlmostEqual, rec[3], 1e-6)
	test.That(t, wxyz[2], test.ShouldAlmostEqual, rec[4], 1e-6)
	test.That(t, wxyz[3], test.ShouldAlmostEqual, rec[5], 1e-6)
}

func TestWithOrientation(t *testing.T) {
	src, err := FromRecord([]float64{0, 0, 0, 1, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	p := WithOrientation(r3.Vector{X: 1, Y: 2, Z: 3}, src)
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, WXYZ(p)[1], test.ShouldAlmostEqual, 1.0)
}
