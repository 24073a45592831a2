/*
Package store implements botpack's content-addressed store of package trees.

Trees are keyed by a deterministic digest over every regular file and
symlink, ordered lexicographically by posix-form relative path:

	F <relpath> NUL <file bytes> NUL
	L <relpath> NUL <link target> NUL

Two trees hash equal iff they have identical file contents, identical
symlink targets, and identical relative paths. Directories contribute
nothing beyond their contained entries.

Publication is write-once and atomic: a tree is copied to
<store>/<digest>.tmp and renamed to <store>/<digest>. Because the
published name equals the content digest, concurrent writers of the same
tree are idempotent; the second writer observes the existing entry.

Materialization projects a store entry to a destination via copy,
directory symlink, or per-file hardlink. Mode auto tries
symlink -> hardlink -> copy, falling through on cross-device, permission,
and access errors. Destinations are always staged as <dest>.tmp and
renamed into place.
*/
package store
