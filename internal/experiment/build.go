package experiment

import (
	"slices"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// Lattice builds the lattice of cfg.
func Lattice(cfg *config.Config) (*domain.Lattice, error) {
	return domain.NewLattice(cfg.Lattice, cfg.Dimension, cfg.Units == "lj")
}

// Box builds the simulation box of cfg. A box given in cells spans whole
// lattice cells from the origin; 2d boxes get a unit-thick periodic z.
func Box(cfg *config.Config, l *domain.Lattice) (*domain.Box, error) {
	bc := cfg.Box
	var lo, hi r3.Vec
	if bc.Cells != [3]int{} {
		hi = r3.Vec{
			X: float64(bc.Cells[0]) * l.Spacing.X,
			Y: float64(bc.Cells[1]) * l.Spacing.Y,
			Z: float64(bc.Cells[2]) * l.Spacing.Z,
		}
	} else {
		lo = r3.Vec{X: bc.Lo[0], Y: bc.Lo[1], Z: bc.Lo[2]}
		hi = r3.Vec{X: bc.Hi[0], Y: bc.Hi[1], Z: bc.Hi[2]}
	}
	periodic := bc.Periodic
	if cfg.Dimension == 2 {
		lo.Z, hi.Z = -0.5, 0.5
		periodic[2] = true
	}
	if bc.Triclinic() {
		return domain.NewTriclinic(lo, hi, bc.Tilt[0], bc.Tilt[1], bc.Tilt[2], periodic, cfg.Dimension)
	}
	return domain.NewBox(lo, hi, periodic, cfg.Dimension)
}

// Topology links consecutive tags into the chains of cfg, or returns nil.
func Topology(cfg *config.Config, natoms int) (*topology.Topology, error) {
	ch := cfg.Chains
	if ch == nil {
		return nil, nil
	}
	if natoms%ch.Length != 0 {
		return nil, dynamo.Configf("chains.length", "%d particles do not split into chains of %d", natoms, ch.Length)
	}
	var bonds []topology.Bond
	var angles []topology.Angle
	for first := 1; first <= natoms; first += ch.Length {
		b, a := topology.Chain(int64(first), ch.Length, ch.BondType, ch.AngleType)
		bonds = append(bonds, b...)
		angles = append(angles, a...)
	}
	return topology.New(bonds, angles)
}

// BuildSystem creates the particles of cfg on its lattice, links the
// chains and resolves the force terms.
func BuildSystem(cfg *config.Config, reg *Registry) (*sim.System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := Lattice(cfg)
	if err != nil {
		return nil, err
	}
	box, err := Box(cfg, l)
	if err != nil {
		return nil, err
	}
	sites := l.Sites(box)
	if len(sites) == 0 {
		return nil, dynamo.Configf("lattice", "no lattice sites inside the box")
	}

	atoms := make([]atom.Record, len(sites))
	for k, s := range sites {
		ty := 1
		if s.Basis < len(cfg.BasisTypes) {
			ty = cfg.BasisTypes[s.Basis]
		}
		atoms[k] = atom.Record{Tag: int64(k + 1), Type: int32(ty), X: s.X}
		if len(cfg.Charge) > 0 {
			atoms[k].Q = cfg.Charge[ty-1]
		}
		if slices.Contains(cfg.FrozenTypes, ty) {
			atoms[k].Flags |= atom.FlagFrozen
		}
	}

	topo, err := Topology(cfg, len(atoms))
	if err != nil {
		return nil, err
	}
	forces, err := reg.Forces(cfg)
	if err != nil {
		return nil, err
	}
	return &sim.System{
		Box:      box,
		Atoms:    atoms,
		NTypes:   cfg.Types,
		Mass:     append([]float64{0}, cfg.Mass...),
		Topology: topo,
		Forces:   forces,
	}, nil
}

// SimConfig maps cfg onto the run settings.
func SimConfig(cfg *config.Config) (sim.Config, error) {
	units, err := dynamo.LookupUnits(cfg.Units)
	if err != nil {
		return sim.Config{}, err
	}
	dt, err := cfg.TimeStep()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Steps:           cfg.Steps,
		Dt:              dt,
		Units:           units,
		Neighbor:        cfg.NeighborConfig(),
		Driver:          cfg.Driver,
		Threads:         cfg.Threads,
		Procs:           cfg.Procs,
		Grid:            cfg.Grid,
		ThermoEvery:     cfg.ThermoEvery,
		CheckpointEvery: cfg.CheckpointEvery,
		Temperature:     cfg.Temperature,
		Seed:            cfg.Seed,
		PerAtom:         cfg.PerAtom,
		MaxTemp:         cfg.MaxTemp,
		RDFBins:         cfg.Analysis.RDFBins,
		RDFCutoff:       cfg.Analysis.RDFCutoff,
		MSD:             cfg.Analysis.MSD,
	}, nil
}
