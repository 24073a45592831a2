// Package issues provides the structured issue surface: stable hashed
// issue ids for conflicts, trust gates, and blocked servers, plus
// network-free status collection and id-to-description resolution for
// the status/doctor/explain commands. Rendering is the CLI's concern.
package issues
