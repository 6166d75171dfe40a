package polytope

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		name string
		kind Kind
	}{
		{"cube", Cube},
		{"simplex", Simplex},
		{"orthoplex", Orthoplex},
	} {
		kind, err := ParseKind(tc.name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, kind, test.ShouldEqual, tc.kind)
		test.That(t, kind.String(), test.ShouldEqual, tc.name)
	}

	_, err := ParseKind("dodecahedron")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported polytope kind")
}

func TestVertexCounts(t *testing.T) {
	for dim := 1; dim <= 6; dim++ {
		for _, kind := range []Kind{Cube, Simplex, Orthoplex} {
			v, err := Vertices(kind, dim)
			test.That(t, err, test.ShouldBeNil)
			rows, cols := v.Dims()
			test.That(t, rows, test.ShouldEqual, kind.NumVertices(dim))
			test.That(t, cols, test.ShouldEqual, dim)
		}
		test.That(t, Cube.NumVertices(dim), test.ShouldEqual, 2*dim)
		test.That(t, Orthoplex.NumVertices(dim), test.ShouldEqual, 2*dim)
		test.That(t, Simplex.NumVertices(dim), test.ShouldEqual, dim+1)
	}
}

func TestVerticesUnitNorm(t *testing.T) {
	for dim := 1; dim <= 5; dim++ {
		for _, kind := range []Kind{Cube, Simplex, Orthoplex} {
			v, err := Vertices(kind, dim)
			test.That(t, err, test.ShouldBeNil)
			rows, _ := v.Dims()
			for i := 0; i < rows; i++ {
				test.That(t, mat.Norm(v.RowView(i), 2), test.ShouldAlmostEqual, 1, 1e-12)
			}
		}
	}
}

func TestNegationClosure(t *testing.T) {
	for _, kind := range []Kind{Cube, Orthoplex} {
		v, err := Vertices(kind, 3)
		test.That(t, err, test.ShouldBeNil)
		rows, cols := v.Dims()
		for i := 0; i < rows; i++ {
			found := false
			for k := 0; k < rows; k++ {
				match := true
				for j := 0; j < cols; j++ {
					if v.At(k, j) != -v.At(i, j) {
						match = false
						break
					}
				}
				if match {
					found = true
					break
				}
			}
			test.That(t, found, test.ShouldBeTrue)
		}
	}
}

func TestSimplexRegularity(t *testing.T) {
	for dim := 2; dim <= 5; dim++ {
		v, err := Vertices(Simplex, dim)
		test.That(t, err, test.ShouldBeNil)
		rows, cols := v.Dims()
		// all pairwise distances equal in a regular simplex
		var ref float64
		for i := 0; i < rows; i++ {
			for k := i + 1; k < rows; k++ {
				d := 0.0
				for j := 0; j < cols; j++ {
					diff := v.At(i, j) - v.At(k, j)
					d += diff * diff
				}
				if ref == 0 {
					ref = d
				}
				test.That(t, d, test.ShouldAlmostEqual, ref, 1e-9)
			}
		}
	}
}

func TestVerticesDeterministic(t *testing.T) {
	a, err := Vertices(Simplex, 4)
	test.That(t, err, test.ShouldBeNil)
	b, err := Vertices(Simplex, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(a, b), test.ShouldBeTrue)
}

func TestVerticesBadDim(t *testing.T) {
	_, err := Vertices(Cube, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dimension must be positive")
	_, err = Vertices(Cube, -2)
	test.That(t, err, test.ShouldNotBeNil)
}
