// Package audience classifies people into list types and segments and
// evaluates condition trees into recipient sets.
//
// A condition tree is an AND of OR groups. Each condition resolves to a set
// of person ids; a negated condition resolves to the complement relative to
// the caller's base set, or to all eligible people when no base is given.
package audience
