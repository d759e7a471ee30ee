// Package book defines the canonical records that cross component boundaries:
// the normalized Book produced by every catalog adapter, the caller-supplied
// SearchParams, and the SearchResults envelope returned by searches.
//
// Adapters construct Books fresh from each HTTP response and never mutate them
// afterwards. The Book identifier embeds its source ("google-<id>",
// "openlibrary-<id>") so provenance survives merging and ids never collide
// across catalogs.
package book
