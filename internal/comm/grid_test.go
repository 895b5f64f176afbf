package comm

import (
	"errors"
	"testing"

	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFactor(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		prd    r3.Vec
		dim    int
		user   [3]int
		expect [3]int
	}{
		{"cube 8", 8, r3.Vec{X: 10, Y: 10, Z: 10}, 3, [3]int{}, [3]int{2, 2, 2}},
		{"slab 4", 4, r3.Vec{X: 40, Y: 10, Z: 10}, 3, [3]int{}, [3]int{4, 1, 1}},
		{"single", 1, r3.Vec{X: 1, Y: 1, Z: 1}, 3, [3]int{}, [3]int{1, 1, 1}},
		{"user fixed", 6, r3.Vec{X: 10, Y: 10, Z: 10}, 3, [3]int{0, 0, 6}, [3]int{1, 1, 6}},
		{"2d", 4, r3.Vec{X: 10, Y: 10, Z: 1}, 2, [3]int{}, [3]int{2, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Factor(tt.n, tt.prd, tt.dim, tt.user)
			if err != nil {
				t.Fatalf("Factor: %v", err)
			}
			if got != tt.expect {
				t.Errorf("Factor = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestFactorRejects(t *testing.T) {
	cases := []struct {
		n    int
		dim  int
		user [3]int
	}{
		{0, 3, [3]int{}},
		{6, 3, [3]int{2, 2, 2}},
		{6, 3, [3]int{4, 0, 0}},
		{4, 2, [3]int{1, 1, 4}},
	}
	for _, c := range cases {
		_, err := Factor(c.n, r3.Vec{X: 1, Y: 1, Z: 1}, c.dim, c.user)
		if !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("Factor(%d, %v) error = %v, want configuration error", c.n, c.user, err)
		}
	}
}
