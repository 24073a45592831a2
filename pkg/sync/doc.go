/*
Package sync projects first-party and package assets into each target
front-end's directory layout with drift detection and per-path
provenance.

Targets map to project-local roots:

	claude      .claude
	amp         .agents
	droid       .factory
	letta-code  .letta (managed settings.json only)

One sync is a logical transaction over a target: gather inputs (manifest,
lockfile, asset scans), compute the desired content per output path,
drift-check each path against the recorded last-known-good hash, then
commit with staged .tmp writes. A path whose current bytes match neither
the desired content nor the last-known-good hash was edited by the user;
it is left untouched, carried forward in state, and reported as a
conflict (force demotes conflicts to updates). Conflict records persist
under state/conflicts-<target>.json and are removed on a clean sync.

The final on-disk state is a function of inputs, prior state, link mode,
and the force flag only: inputs are enumerated in a total order and every
emitted document has sorted keys.
*/
package sync
