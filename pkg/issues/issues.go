package issues

import (
	"crypto/sha256"
	"encoding/hex"
)

// Issue IDs are stable identifiers surfaced by status/doctor output and
// consumed by `botpack explain <id>`. They must be stable across runs,
// copy/paste friendly, and computable without network access:
//
//	conflict:<8-hex>  over "target:path"
//	trust:<8-hex>     over the package key
//	blocked:<8-hex>   over the blocked reason
func hash8(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}

// ConflictID returns the stable id for a sync conflict.
func ConflictID(target, path string) string {
	return "conflict:" + hash8(target+":"+path)
}

// TrustID returns the stable id for a trust gate on a package.
func TrustID(pkgKey string) string {
	return "trust:" + hash8(pkgKey)
}

// BlockedID returns the stable id for a blocked MCP server (or similar
// denial).
func BlockedID(reason string) string {
	return "blocked:" + hash8(reason)
}
