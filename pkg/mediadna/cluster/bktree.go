package cluster

import "math/bits"

// BKTree indexes 64-bit perceptual hashes under Hamming distance.
type BKTree struct {
	root *bkNode
	size int
}

type bkNode struct {
	value    uint64
	children map[int]*bkNode
}

func hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Add inserts v. It returns false if v was already present.
func (t *BKTree) Add(v uint64) bool {
	if t.root == nil {
		t.root = &bkNode{value: v}
		t.size = 1
		return true
	}
	n := t.root
	for {
		d := hamming(n.value, v)
		if d == 0 {
			return false
		}
		child, ok := n.children[d]
		if !ok {
			if n.children == nil {
				n.children = make(map[int]*bkNode)
			}
			n.children[d] = &bkNode{value: v}
			t.size++
			return true
		}
		n = child
	}
}

// Search returns every stored value within radius of v, v itself included
// when present.
func (t *BKTree) Search(v uint64, radius int) []uint64 {
	if t.root == nil || radius < 0 {
		return nil
	}
	var out []uint64
	stack := []*bkNode{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d := hamming(n.value, v)
		if d <= radius {
			out = append(out, n.value)
		}
		lo, hi := d-radius, d+radius
		for cd, child := range n.children {
			if cd >= lo && cd <= hi {
				stack = append(stack, child)
			}
		}
	}
	return out
}

func (t *BKTree) Len() int { return t.size }
