/*
Package manifest parses, validates, and rewrites botpack's TOML config
surfaces: the project manifest (botpack.toml, legacy botyard.toml) and
package manifests (agentpkg.toml).

Parsing is two-phase: TOML is decoded into a loosely typed tree, then
validated against a closed schema and projected into the typed model in
pkg/types. Every unknown key is a deterministic validation error carrying
the dotted path to the offending key. Version mismatches are hard errors.
The legacy [workspace] section is accepted on read and always written
back as [assets].

Rewrites (add/remove dependency) do not preserve comments; the manifest
is re-emitted in a canonical minimal layout with stable section and key
ordering, so equivalent edit sequences produce byte-identical files.
*/
package manifest
