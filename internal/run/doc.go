// Package run wires configuration, providers, cache, enricher, and
// registrar into one enrichment run: load cards, generate media, merge
// references into records, register the files, and write the outputs.
package run
