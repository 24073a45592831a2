// Package install orchestrates the install pipeline: manifest ->
// fetch -> store -> package manifest -> trust gate -> lockfile. Trust
// denials abort the install; nothing is recorded for a denied package.
package install
