// Package polish implements Tukey's median polish, the robust additive fit
// used to summarize probe-level intensities into one value per probeset and
// sample.
//
// A matrix m is decomposed as
//
//	m[i][j] = Overall + RowEffects[i] + ColEffects[j] + Residuals[i][j]
//
// by alternating row and column median sweeps until the sum of absolute
// residuals stops changing (relative change below Eps) or MaxIter sweeps
// have run. The identity above holds after every sweep, up to floating
// point rounding.
//
// [Polish] works at the precision of its input and treats every value as
// present. [PolishMissing] computes in float64 and ignores NaN cells, which
// is how masked and outlier cells arrive from the intensity decoders.
//
// With MaxIter set to [Unlimited] only convergence ends the loop, and a
// pathological input may never converge.
package polish
