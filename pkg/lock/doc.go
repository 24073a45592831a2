/*
Package lock reads and writes the botpack.lock file: the deterministic
record of resolved dependencies with integrity digests.

Serialization is canonical: recursively sorted keys, 2-space indent,
unescaped UTF-8, and a trailing newline, written atomically via a .tmp
sibling. Two lockfiles produced from equivalent inputs are byte-identical,
and parse/serialize round-trips are lossless.

On read, the legacy botyardVersion key is accepted when it agrees with
botpackVersion; unsupported lockfileVersion values are hard errors.
*/
package lock
