// Package polytope generates the fixed sets of unit direction vectors used to
// probe the local neighborhood of a state.
package polytope

import (
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind enumerates the supported probe polytopes.
type Kind int

// The set of supported polytopes.
const (
	Cube Kind = iota
	Simplex
	Orthoplex
)

func (k Kind) String() string {
	switch k {
	case Cube:
		return "cube"
	case Simplex:
		return "simplex"
	case Orthoplex:
		return "orthoplex"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a configuration string into a Kind. Only meant for
// configuration boundaries; the hot loop works with the resolved vertex set.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "cube":
		return Cube, nil
	case "simplex":
		return Simplex, nil
	case "orthoplex":
		return Orthoplex, nil
	default:
		return 0, errors.Errorf("unsupported polytope kind %q", s)
	}
}

// NumVertices returns the vertex count for the polytope in the given dimension.
func (k Kind) NumVertices(dim int) int {
	switch k {
	case Simplex:
		return dim + 1
	default:
		// cube and orthoplex both probe along 2*dim directions
		return 2 * dim
	}
}

type cacheKey struct {
	kind Kind
	dim  int
}

var (
	cacheMu     sync.Mutex
	vertexCache = map[cacheKey]*mat.Dense{}
)

// Vertices returns the unit vertex set of the polytope as a (NumVertices x dim)
// matrix. Results are deterministic and cached per (kind, dim); callers must
// not mutate the returned matrix.
func Vertices(kind Kind, dim int) (*mat.Dense, error) {
	if dim < 1 {
		return nil, errors.Errorf("polytope dimension must be positive, got %d", dim)
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	key := cacheKey{kind, dim}
	if v, ok := vertexCache[key]; ok {
		return v, nil
	}

	var v *mat.Dense
	switch kind {
	case Cube, Orthoplex:
		// Axis-aligned +/- unit vectors. The cross-polytope vertex set coincides
		// with the axis probe directions used for the cube.
		v = mat.NewDense(2*dim, dim, nil)
		for i := 0; i < dim; i++ {
			v.Set(2*i, i, 1)
			v.Set(2*i+1, i, -1)
		}
	case Simplex:
		v = simplexVertices(dim)
	default:
		return nil, errors.Errorf("unsupported polytope kind %v", kind)
	}
	vertexCache[key] = v
	return v, nil
}

// simplexVertices builds the dim+1 vertices of a regular simplex centered at
// the origin, each normalized to unit length.
func simplexVertices(dim int) *mat.Dense {
	n := dim + 1
	v := mat.NewDense(n, dim, nil)
	// Classic construction: the unit basis vectors plus the balancing vertex
	// ((1-sqrt(dim+1))/dim, ...), which keeps all pairwise distances at
	// sqrt(2). Centering on the centroid then leaves every vertex equidistant
	// from the origin, so row normalization preserves regularity.
	for i := 0; i < dim; i++ {
		v.Set(i, i, 1)
	}
	last := (1 - math.Sqrt(float64(n))) / float64(dim)
	for j := 0; j < dim; j++ {
		v.Set(dim, j, last)
	}
	for j := 0; j < dim; j++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += v.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			v.Set(i, j, v.At(i, j)-mean)
		}
	}
	for i := 0; i < n; i++ {
		norm := mat.Norm(v.RowView(i), 2)
		for j := 0; j < dim; j++ {
			v.Set(i, j, v.At(i, j)/norm)
		}
	}
	return v
}
