// Package analyze derives issues from the evidence channels the structural
// scanner does not cover: link and heading meaning (Semantic), keyboard
// focus behaviour (Interaction) and the rendered page (Visual).
//
// The analyzers are independent. Each reads its own slice of evidence and
// returns issues of its own category. Oracle-backed analyzers never fail:
// a call or schema error yields no issues.
package analyze
