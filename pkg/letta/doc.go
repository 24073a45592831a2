// Package letta materializes the Letta Code target: a managed
// .letta/settings.json carrying a `_botpack` sentinel. The sibling
// settings.local.json holds user-local bindings and is never written.
package letta
