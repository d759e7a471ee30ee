// Package language normalizes the language filter accepted by searches.
//
// Callers may pass a 2-letter code, a 3-letter code, an English word, or a
// BCP 47 tag such as "pt-BR". Google Books expects ISO 639-1 codes while Open
// Library indexes MARC (ISO 639-2/B) codes, so both forms are exposed here.
package language
