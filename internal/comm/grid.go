package comm

import (
	"math"

	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Factor picks the processor grid for nprocs ranks that minimises the
// surface between sub-boxes. Non-zero entries of user are kept fixed.
func Factor(nprocs int, prd r3.Vec, dimension int, user [3]int) ([3]int, error) {
	if nprocs < 1 {
		return [3]int{}, dynamo.Configf("procs", "need at least one rank, got %d", nprocs)
	}
	if dimension == 2 {
		if user[2] > 1 {
			return [3]int{}, dynamo.Configf("procs", "2d simulation needs one rank along z, got %d", user[2])
		}
		user[2] = 1
	}
	fixed := 1
	for _, u := range user {
		if u < 0 {
			return [3]int{}, dynamo.Configf("procs", "negative grid entry %v", user)
		}
		if u > 0 {
			fixed *= u
		}
	}
	if user[0] > 0 && user[1] > 0 && user[2] > 0 && fixed != nprocs {
		return [3]int{}, dynamo.Configf("procs", "grid %v does not match %d ranks", user, nprocs)
	}
	if nprocs%fixed != 0 {
		return [3]int{}, dynamo.Configf("procs", "grid %v does not divide %d ranks", user, nprocs)
	}

	area := [3]float64{prd.X * prd.Y, prd.X * prd.Z, prd.Y * prd.Z}
	best := [3]int{}
	bestSurf := math.Inf(1)
	for px := 1; px <= nprocs; px++ {
		if nprocs%px != 0 || (user[0] > 0 && px != user[0]) {
			continue
		}
		rest := nprocs / px
		for py := 1; py <= rest; py++ {
			if rest%py != 0 || (user[1] > 0 && py != user[1]) {
				continue
			}
			pz := rest / py
			if user[2] > 0 && pz != user[2] {
				continue
			}
			fx, fy, fz := float64(px), float64(py), float64(pz)
			surf := area[0]/fx/fy + area[1]/fx/fz + area[2]/fy/fz
			if dimension == 2 {
				surf = prd.X/fx + prd.Y/fy
			}
			if surf < bestSurf {
				bestSurf = surf
				best = [3]int{px, py, pz}
			}
		}
	}
	if best[0] == 0 {
		return [3]int{}, dynamo.Configf("procs", "no grid of %d ranks satisfies %v", nprocs, user)
	}
	return best, nil
}
