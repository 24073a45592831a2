// Package types defines the shared configuration and policy data model for
// botpack: manifest sections, the dependency union, package manifests, and
// trust records. Parsing and validation live in pkg/manifest and pkg/trust;
// this package holds only plain data.
package types
