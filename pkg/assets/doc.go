// Package assets discovers skills, slash-commands, and agent prompts
// under an assets root (first-party workspace or a stored package tree),
// returning an index with stable, id-sorted ordering.
package assets
