package ml

import "testing"

// snowTree splits on season, then on lowest temperature for winter.
func snowTree() *RegressionTree {
	return &RegressionTree{Nodes: []TreeNode{
		{FeatureIdx: 0, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		leaf(0.5),
		{FeatureIdx: 1, Threshold: -3, LeftChild: 3, RightChild: 4},
		leaf(12.25),
		leaf(4),
	}}
}

func TestRegressionTreePredict(t *testing.T) {
	tree := snowTree()
	if err := tree.Validate(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		features []float64
		want     float64
	}{
		{[]float64{0, -10, 2, 40}, 0.5},
		{[]float64{1, -5, 2, 40}, 12.25},
		{[]float64{1, 1, 2, 40}, 4},
	}
	for _, tc := range cases {
		got, err := tree.Predict(tc.features)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("expected %v, got %v for %v", tc.want, got, tc.features)
		}
	}
}

func TestRegressionTreeValidate(t *testing.T) {
	empty := &RegressionTree{}
	if err := empty.Validate(4); err == nil {
		t.Fatal("expected error for empty tree")
	}

	badFeature := &RegressionTree{Nodes: []TreeNode{
		{FeatureIdx: 7, Threshold: 0, LeftChild: 1, RightChild: 2},
		leaf(1),
		leaf(2),
	}}
	if err := badFeature.Validate(4); err == nil {
		t.Fatal("expected error for out of range feature")
	}

	backEdge := &RegressionTree{Nodes: []TreeNode{
		{FeatureIdx: 0, Threshold: 0, LeftChild: 1, RightChild: 0},
		leaf(1),
	}}
	if err := backEdge.Validate(4); err == nil {
		t.Fatal("expected error for child pointing backwards")
	}
}

func TestForestAverages(t *testing.T) {
	forest := &Forest{Trees: []RegressionTree{
		*snowTree(),
		{Nodes: []TreeNode{leaf(2.25)}},
	}}
	if err := forest.Validate(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := forest.Predict([]float64{1, -5, 2, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7.25 {
		t.Fatalf("expected 7.25, got %v", got)
	}
}

func TestLinearModel(t *testing.T) {
	model := &LinearModel{Coefficients: []float64{3, -0.5, -0.25, 0.1}, Intercept: 1}
	if err := model.Validate(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := model.Predict([]float64{1, -5, 2, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1 + 3 + 2.5 - 0.5 + 4
	if got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	if _, err := model.Predict([]float64{1, 2}); err == nil {
		t.Fatal("expected error for short row")
	}
	if err := model.Validate(3); err == nil {
		t.Fatal("expected coefficient count mismatch")
	}
}

func TestScalerTransform(t *testing.T) {
	scaler := &Scaler{Mean: []float64{0.5, 0, 4, 20}, Scale: []float64{0.5, 5, 0, 10}}
	row := []float64{1, -5, 2, 40}
	out, err := scaler.Transform(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1, -1, -2, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
	if row[0] != 1 || row[3] != 40 {
		t.Fatalf("input row was modified: %v", row)
	}
}
