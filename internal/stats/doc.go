// Package stats implements the hypothesis tests behind labstat.
//
// Descriptives and the t and F distributions come from gonum. The
// studentized range and Dunnett distributions have no gonum counterpart and
// are computed here by Gauss-Legendre quadrature over the distribution of
// the pooled standard deviation.
//
// All functions take samples in the caller's group order and report
// comparisons by index into that order.
package stats
