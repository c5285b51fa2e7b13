package dvhop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const solverTolerance = 1e-6

// anchorsTo returns anchors at the given positions with exact ranges to target.
// Anchor IDs follow the order of positions, starting at one.
func anchorsTo(target Point, positions ...Point) []Anchor {
	anchors := make([]Anchor, 0, len(positions))
	for i, position := range positions {
		anchors = append(anchors, Anchor{ID: NodeID(i + 1), Position: position, Range: position.Distance(target)})
	}
	return anchors
}

func requirePointInDelta(t *testing.T, want, got Point, delta float64) {
	t.Helper()
	require.InDelta(t, want.X, got.X, delta, "x of %s", got)
	require.InDelta(t, want.Y, got.Y, delta, "y of %s", got)
}

func TestTrilaterate_RecoversExactPosition(t *testing.T) {
	t.Parallel()
	a := Anchor{ID: 1, Position: Point{X: 0, Y: 0}, Range: 5}
	b := Anchor{ID: 2, Position: Point{X: 10, Y: 0}, Range: math.Sqrt(65)}
	c := Anchor{ID: 3, Position: Point{X: 0, Y: 10}, Range: math.Sqrt(45)}

	got, status := Trilaterate(a, b, c, defaultCollinearityTolerance)
	require.Equal(t, StatusOK, status)
	requirePointInDelta(t, Point{X: 3, Y: 4}, got, solverTolerance)
}

func TestSolver_ThreeAnchorsIndependentOfInputOrder(t *testing.T) {
	t.Parallel()
	subject, err := NewSolver()
	require.NoError(t, err)

	target := Point{X: 3, Y: 4}
	anchors := anchorsTo(target, Point{X: 0, Y: 0}, Point{X: 10, Y: 0}, Point{X: 0, Y: 10})
	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, perm := range permutations {
		given := []Anchor{anchors[perm[0]], anchors[perm[1]], anchors[perm[2]]}
		got, status := subject.Solve(given)
		require.Equal(t, StatusOK, status)
		requirePointInDelta(t, target, got, solverTolerance)
	}
}

func TestSolver_ReportsDegenerateGeometry(t *testing.T) {
	t.Parallel()
	subject, err := NewSolver()
	require.NoError(t, err)

	tests := []struct {
		name  string
		given []Anchor
	}{
		{
			name: "three collinear",
			given: []Anchor{
				{ID: 1, Position: Point{X: 0, Y: 0}, Range: 1},
				{ID: 2, Position: Point{X: 1, Y: 0}, Range: 2},
				{ID: 3, Position: Point{X: 2, Y: 0}, Range: 3},
			},
		},
		{
			name: "first two coincident",
			given: []Anchor{
				{ID: 1, Position: Point{X: 5, Y: 5}, Range: 1},
				{ID: 2, Position: Point{X: 5, Y: 5}, Range: 1},
				{ID: 3, Position: Point{X: 2, Y: 9}, Range: 3},
			},
		},
		{
			name: "three nearly collinear",
			given: []Anchor{
				{ID: 1, Position: Point{X: 0, Y: 0}, Range: 1},
				{ID: 2, Position: Point{X: 100, Y: 0}, Range: 99},
				{ID: 3, Position: Point{X: 200, Y: 1e-12}, Range: 199},
			},
		},
		{
			name: "far and nearly collinear",
			given: []Anchor{
				{ID: 1, Position: Point{X: 0, Y: 0}, Range: math.Hypot(0.5, 3)},
				{ID: 2, Position: Point{X: 1, Y: 0}, Range: math.Hypot(0.5, 3)},
				{ID: 3, Position: Point{X: 1e6, Y: 1e-4}, Range: math.Hypot(1e6-0.5, 3) + 0.01},
			},
		},
		{
			name: "four collinear",
			given: []Anchor{
				{ID: 1, Position: Point{X: 0, Y: 0}, Range: 1},
				{ID: 2, Position: Point{X: 1, Y: 1}, Range: 2},
				{ID: 3, Position: Point{X: 2, Y: 2}, Range: 3},
				{ID: 4, Position: Point{X: 3, Y: 3}, Range: 4},
			},
		},
		{
			name: "four coincident",
			given: []Anchor{
				{ID: 1, Position: Point{X: 7, Y: 7}, Range: 1},
				{ID: 2, Position: Point{X: 7, Y: 7}, Range: 2},
				{ID: 3, Position: Point{X: 7, Y: 7}, Range: 3},
				{ID: 4, Position: Point{X: 7, Y: 7}, Range: 4},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, status := subject.Solve(test.given)
			require.Equal(t, StatusDegenerate, status)
			require.Equal(t, Point{}, got)
		})
	}
}

func TestSolver_UnderdeterminedBelowThreeAnchors(t *testing.T) {
	t.Parallel()
	subject, err := NewSolver()
	require.NoError(t, err)

	for _, given := range [][]Anchor{
		nil,
		anchorsTo(Point{}, Point{X: 1}),
		anchorsTo(Point{}, Point{X: 1}, Point{Y: 1}),
	} {
		_, status := subject.Solve(given)
		require.Equal(t, StatusUnderdetermined, status)
	}
}

func TestSolver_LeastSquaresRecoversExactPosition(t *testing.T) {
	t.Parallel()
	subject, err := NewSolver()
	require.NoError(t, err)

	target := Point{X: 30, Y: 40}
	anchors := anchorsTo(target,
		Point{X: 0, Y: 0},
		Point{X: 100, Y: 0},
		Point{X: 0, Y: 100},
		Point{X: 100, Y: 100},
		Point{X: 50, Y: 0},
		Point{X: 0, Y: 50},
	)
	for n := 4; n <= len(anchors); n++ {
		got, status := subject.Solve(anchors[:n])
		require.Equal(t, StatusOK, status)
		requirePointInDelta(t, target, got, solverTolerance)
	}
}

func TestSolver_LeastSquaresAveragesOutPerturbedAnchor(t *testing.T) {
	t.Parallel()
	subject, err := NewSolver()
	require.NoError(t, err)

	target := Point{X: 30, Y: 40}
	anchors := anchorsTo(target,
		Point{X: 0, Y: 0},
		Point{X: 100, Y: 0},
		Point{X: 0, Y: 100},
		Point{X: 100, Y: 100},
		Point{X: 50, Y: 0},
		Point{X: 0, Y: 50},
	)
	// Overestimate the range to the anchor with ID 4.
	anchors[3].Range += 5

	all, status := subject.Solve(anchors)
	require.Equal(t, StatusOK, status)
	allError := all.Distance(target)

	for _, trio := range [][]Anchor{
		{anchors[1], anchors[2], anchors[3]},
		{anchors[0], anchors[1], anchors[3]},
		{anchors[3], anchors[4], anchors[5]},
	} {
		closed, status := subject.Solve(trio)
		require.Equal(t, StatusOK, status)
		require.Less(t, allError, closed.Distance(target))
	}
}

func TestSolver_ConditionThresholdIsConfigurable(t *testing.T) {
	t.Parallel()
	// A thin but not collinear spread of anchors.
	anchors := anchorsTo(Point{X: 5, Y: 1},
		Point{X: 0, Y: 0},
		Point{X: 10, Y: 0.01},
		Point{X: 20, Y: 0},
		Point{X: 30, Y: 0.01},
	)

	lenient, err := NewSolver()
	require.NoError(t, err)
	_, status := lenient.Solve(anchors)
	require.Equal(t, StatusOK, status)

	strict, err := NewSolver(WithMaxConditionNumber(100))
	require.NoError(t, err)
	_, status = strict.Solve(anchors)
	require.Equal(t, StatusDegenerate, status)
}

func TestNewSolver_RejectsInvalidOptions(t *testing.T) {
	t.Parallel()
	_, err := NewSolver(WithMaxConditionNumber(1))
	require.Error(t, err)
	_, err = NewSolver(WithMaxConditionNumber(math.NaN()))
	require.Error(t, err)
	_, err = NewSolver(WithCollinearityTolerance(-1))
	require.Error(t, err)
}
