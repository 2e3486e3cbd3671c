// Package tts implements the speech synthesis provider client. It performs
// single HTTP attempts; retry policy belongs to the providers.Caller that
// wraps it.
package tts
