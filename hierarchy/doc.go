// Package hierarchy turns flat parent-pointer account lists into trees.
//
// The Forest type keeps accounts in an arena: one map from id to record and
// one map from parent id to the ordered ids of its children, with roots filed
// under the empty parent id. Lookups never walk the tree, and every update
// goes through Reduce, which returns a new Forest and leaves its input alone.
// Records whose parent cannot be reached from a root are not part of the
// forest; they are reported separately as orphans.
package hierarchy
