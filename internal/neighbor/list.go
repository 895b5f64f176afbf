package neighbor

// A neighbor entry is a local index in the low 30 bits and the special
// level of the pair in the top two.
const (
	SpecialShift        = 30
	NeighMask    uint32 = 1<<SpecialShift - 1
)

// Index returns the local particle index of a neighbor entry.
func Index(j uint32) int { return int(j & NeighMask) }

// SpecialLevel returns the special level (0 for none) of a neighbor entry.
func SpecialLevel(j uint32) int { return int(j >> SpecialShift) }

func encode(j, level int) uint32 { return uint32(j) | uint32(level)<<SpecialShift }

// List is a neighbor list in compressed row form: the neighbors of owned
// particle i are Neigh[Offsets[i]:Offsets[i+1]].
type List struct {
	Full   bool
	Newton bool
	Inum   int

	Offsets []int32
	Neigh   []uint32
}

// Neighbors returns the entries of owned particle i.
func (l *List) Neighbors(i int) []uint32 {
	return l.Neigh[l.Offsets[i]:l.Offsets[i+1]]
}

// Pairs returns the number of stored entries.
func (l *List) Pairs() int { return len(l.Neigh) }
