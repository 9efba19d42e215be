// Package stale finds cache records whose content no longer earns its
// keep and marks them for cleanup.
//
// Rules run in a fixed order and each record gets at most one
// classification per pass: outdated (content gone from the current tree
// and not sent within maxAge), unused (not sent within twice maxAge),
// then historical (content last seen in commits older than the cutoff),
// which is matched in a separate pass over repository history. Marking is
// soft — records keep their full send history and are only excluded from
// active listings.
package stale
