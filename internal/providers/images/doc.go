// Package images implements the image search provider client: one search
// request for the best-matching photo, then one download of its bytes.
// Retry policy belongs to the providers.Caller that wraps it; an empty
// result set is a valid NotFound outcome, not a failure.
package images
