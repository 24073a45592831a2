/*
Package trust implements botpack's trust gate: user-granted allowances
for packages that declare exec or mcp capabilities.

Trust lives in .botpack/trust.toml, keyed by package key ("name@version")
or the reserved "__workspace__" key for first-party assets. Evaluation is
pure: CheckPackage and CheckMcpServer take the parsed config and return a
Decision value, never an error. An entry may pin a digest; a pinned
digest that disagrees with the observed store integrity is always a deny.

MCP admission is per server fqid ("<namespace>/<id>"): package-level
allowExec/allowMcp apply first, overlaid by any mcp.<fqid> override.
Stdio-transport servers need exec; url-transport servers need mcp.
*/
package trust
