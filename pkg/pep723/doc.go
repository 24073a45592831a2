// Package pep723 parses the inline `# /// script` metadata block defined by
// PEP 723 from Python script sources. Parsing is pure: nothing is executed,
// and only the requires-python and dependencies fields are projected out.
package pep723
