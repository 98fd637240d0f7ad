// Package analysis is the statistical comparison engine.
//
// Run takes tidy observations and a Request and produces a model.Analysis:
// the pairwise comparisons of the chosen test plus one GroupSummary per
// (factor level, group) carrying the mean, standard error and the
// significance markers a chart draws above the bar.
//
// Tests:
//
//   - ttest: Welch two-sample t-test. With a factor column every level with
//     exactly two groups is tested; other levels are skipped. Without one,
//     exactly two groups are required and the result is labelled "Total".
//   - tukey: one-way ANOVA and Tukey HSD; summaries carry compact letters.
//   - dunnett: one-way ANOVA and Dunnett's many-to-one test against a
//     control group; summaries carry p-values and "*" markers.
//   - anova: the ANOVA table only.
//
// With a factor column, tukey, dunnett and anova run independently within
// every factor level.
package analysis
