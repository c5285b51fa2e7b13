package dvhop

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxConditionNumber    = 1e12
	defaultCollinearityTolerance = 1e-9
)

// Anchor is a reference point with known position and an estimated range to
// the node being localised.
type Anchor struct {
	ID       NodeID
	Position Point
	Range    float64
}

// SolverOption configures a Solver.
type SolverOption func(*Solver) error

// WithMaxConditionNumber sets the largest 2-norm condition number of the normal
// matrix that the least-squares solver accepts before reporting the anchors as
// degenerate. Defaults to 1e12. It must be larger than 1.
func WithMaxConditionNumber(c float64) SolverOption {
	return func(s *Solver) error {
		if !(c > 1) {
			return errors.New("max condition number must be larger than 1")
		}
		s.maxCond = c
		return nil
	}
}

// WithCollinearityTolerance sets the relative tolerance below which the three
// anchor closed form considers anchors coincident or collinear. Defaults to
// 1e-9. It cannot be negative.
func WithCollinearityTolerance(tol float64) SolverOption {
	return func(s *Solver) error {
		if tol < 0 || math.IsNaN(tol) {
			return errors.New("collinearity tolerance cannot be negative")
		}
		s.tolerance = tol
		return nil
	}
}

// Solver estimates a 2D position from three or more anchors.
type Solver struct {
	maxCond   float64
	tolerance float64
}

// NewSolver instantiates a Solver with the given options.
func NewSolver(o ...SolverOption) (*Solver, error) {
	s := &Solver{
		maxCond:   defaultMaxConditionNumber,
		tolerance: defaultCollinearityTolerance,
	}
	for _, apply := range o {
		if err := apply(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Solve estimates the position consistent with the given anchors.
//
// Anchors are ordered by ascending ID before solving, so the result does not
// depend on the order in which they are given; the lowest ID anchor is the
// reference. Exactly three anchors are solved in closed form, more by linear
// least squares. Fewer than three anchors yield StatusUnderdetermined. The
// returned point is the zero Point unless the status is StatusOK.
func (s *Solver) Solve(anchors []Anchor) (Point, Status) {
	if len(anchors) < 3 {
		return Point{}, StatusUnderdetermined
	}
	ordered := slices.Clone(anchors)
	slices.SortFunc(ordered, func(one, other Anchor) int { return compareIDs(one.ID, other.ID) })
	if len(ordered) == 3 {
		return Trilaterate(ordered[0], ordered[1], ordered[2], s.tolerance)
	}
	return Multilaterate(ordered, s.maxCond)
}

// Trilaterate computes the position at the given ranges from three anchors in
// closed form.
//
// A local frame is built with its origin at a, x axis towards b and y axis
// towards the side of c. The anchors are degenerate when a and b coincide or c
// lies on the line through them, both judged relative to tol. Collinearity is
// measured against the longer of ab and ac so that a far away c close to that
// line is caught too.
func Trilaterate(a, b, c Anchor, tol float64) (Point, Status) {
	ab := b.Position.sub(a.Position)
	d := ab.norm()
	scale := math.Max(math.Max(a.Position.norm(), b.Position.norm()), c.Position.norm())
	if d == 0 || d <= tol*scale {
		return Point{}, StatusDegenerate
	}
	ex := ab.scale(1 / d)
	ac := c.Position.sub(a.Position)
	i := ex.dot(ac)
	// Component of ac perpendicular to ex; its length is j. Relative to the
	// longer of ab and ac, j is at most the sine of the angle at a.
	perp := ac.sub(ex.scale(i))
	j := perp.norm()
	if j == 0 || j <= tol*math.Max(d, ac.norm()) {
		return Point{}, StatusDegenerate
	}
	ey := perp.scale(1 / j)

	ra2, rb2, rc2 := a.Range*a.Range, b.Range*b.Range, c.Range*c.Range
	x := (ra2 - rb2 + d*d) / (2 * d)
	y := (ra2-rc2+i*i+j*j)/(2*j) - i*x/j

	p := a.Position.add(ex.scale(x)).add(ey.scale(y))
	if !p.isFinite() {
		return Point{}, StatusDegenerate
	}
	return p, StatusOK
}

// Multilaterate computes the least-squares position for four or more anchors.
//
// Subtracting the circle equation of the first anchor from that of every other
// anchor cancels the quadratic terms and leaves one linear equation per
// remaining anchor:
//
//	2(x0-xk)x + 2(y0-yk)y = rk² - r0² + x0² + y0² - xk² - yk²
//
// The overdetermined system is solved through its normal equations. The anchors
// are degenerate when the normal matrix has a condition number above maxCond.
func Multilaterate(anchors []Anchor, maxCond float64) (Point, Status) {
	if len(anchors) < 3 {
		return Point{}, StatusUnderdetermined
	}
	ref := anchors[0]
	rows := len(anchors) - 1
	a := mat.NewDense(rows, 2, nil)
	b := mat.NewVecDense(rows, nil)
	refNorm2 := ref.Position.dot(ref.Position)
	for k, anchor := range anchors[1:] {
		a.Set(k, 0, 2*(ref.Position.X-anchor.Position.X))
		a.Set(k, 1, 2*(ref.Position.Y-anchor.Position.Y))
		b.SetVec(k, anchor.Range*anchor.Range-ref.Range*ref.Range+refNorm2-anchor.Position.dot(anchor.Position))
	}

	var normal mat.Dense
	normal.Mul(a.T(), a)
	if cond := mat.Cond(&normal, 2); math.IsNaN(cond) || cond > maxCond {
		return Point{}, StatusDegenerate
	}
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var solution mat.VecDense
	if err := solution.SolveVec(&normal, &atb); err != nil {
		// A Condition error still yields a solution, but one the conditioning
		// check above should already have rejected.
		return Point{}, StatusDegenerate
	}
	p := Point{X: solution.AtVec(0), Y: solution.AtVec(1)}
	if !p.isFinite() {
		return Point{}, StatusDegenerate
	}
	return p, StatusOK
}
