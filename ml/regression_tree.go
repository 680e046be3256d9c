package ml

import (
    "errors"
    "fmt"
)

type RegressionTree struct {
    Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
    FeatureIdx int     `json:"feature_idx"`
    Threshold  float64 `json:"threshold"`
    LeftChild  int     `json:"left_child"`
    RightChild int     `json:"right_child"`
    Value      float64 `json:"value"`
    IsLeaf     bool    `json:"is_leaf"`
}

func (rt *RegressionTree) Predict(features []float64) (float64, error) {
    if len(rt.Nodes) == 0 {
        return 0, errors.New("model not trained")
    }
    idx := 0
    // a well-formed tree reaches a leaf in fewer steps than it has nodes
    for steps := 0; steps <= len(rt.Nodes); steps++ {
        node := rt.Nodes[idx]
        if node.IsLeaf {
            return node.Value, nil
        }
        if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
            return 0, errors.New("feature index out of range")
        }
        if features[node.FeatureIdx] <= node.Threshold {
            idx = node.LeftChild
        } else {
            idx = node.RightChild
        }
        if idx < 0 || idx >= len(rt.Nodes) {
            return 0, errors.New("invalid tree state")
        }
    }
    return 0, errors.New("tree contains a cycle")
}

func (rt *RegressionTree) Validate(numFeatures int) error {
    if len(rt.Nodes) == 0 {
        return errors.New("tree has no nodes")
    }
    for i, node := range rt.Nodes {
        if node.IsLeaf {
            continue
        }
        if node.FeatureIdx < 0 || node.FeatureIdx >= numFeatures {
            return fmt.Errorf("node %d: feature index %d out of range [0,%d)", i, node.FeatureIdx, numFeatures)
        }
        if !validChild(node.LeftChild, i, len(rt.Nodes)) || !validChild(node.RightChild, i, len(rt.Nodes)) {
            return fmt.Errorf("node %d: child index out of range", i)
        }
    }
    return nil
}

// Children are stored after their parent in pre-order.
func validChild(child, parent, size int) bool {
    return child > parent && child < size
}

func leaf(value float64) TreeNode {
    return TreeNode{
        FeatureIdx: -1,
        LeftChild:  -1,
        RightChild: -1,
        Value:      value,
        IsLeaf:     true,
    }
}
