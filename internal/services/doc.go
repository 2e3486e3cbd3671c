// Package services defines the error taxonomy shared by the provider
// clients and the enrichment pipeline. Sentinel errors classify failures
// into the categories the retry and skip policies act on.
package services
