// Package providers contains the resilient call engine shared by the
// external media provider clients: retry classification, exponential
// backoff with jitter, rate-limit handling, and courtesy pacing. Concrete
// HTTP clients live in the tts, images, and query subpackages; they perform
// single attempts and classify failures, while Caller owns the retry loop.
package providers
