// Package pkgs projects installed packages from the content-addressed
// store into stable, human-readable project-local roots under
// .botpack/pkgs/<scope>/<name>@<version>/. Ownership is tracked in
// .botpack/state/pkgs.json so foreign content is reported as a conflict
// rather than overwritten.
package pkgs
