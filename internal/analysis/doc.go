// Package analysis provides structural and dynamical diagnostics of a run.
//
//   - [RDF]: radial distribution function from occasional full neighbor
//     lists, accumulated over samples and ranks
//   - [MSD]: mean squared displacement against origins carried as custom
//     per-particle properties
//   - [Spectrum]: power spectrum of a thermo series
//   - [BlockAverage]: mean and standard error of a correlated series
//
// # Pair Distribution
//
// Each rank counts the pairs of its owned particles and the counts are
// summed before normalisation:
//
//	hist := analysis.PairCounts(table, list, cutoff, bins)
//	sums, _ := comm.AllReduceSum(ctx, hist...)
//	rdf.Add(sums, natoms, volume)
//	r, g := rdf.Result()
package analysis
