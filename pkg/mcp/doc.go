/*
Package mcp aggregates MCP server descriptors from the first-party
mcp/servers.toml and each installed package's mcp/servers.toml into one
canonical per-target document.

Each server is namespaced as "<namespace>/<id>" where the namespace is
the first-party assets name or the package name. Admission is
trust-gated by the caller (stdio transport needs exec, url transport
needs mcp); denied servers are omitted and recorded as blocked. The
emitted document has a stable schema URI, servers sorted by fqid, sorted
keys, and a trailing newline. Duplicate fqids are a hard error.
*/
package mcp
