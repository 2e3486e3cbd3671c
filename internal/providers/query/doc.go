// Package query implements the search-phrase enhancement client: given a
// vocabulary word and its example sentence, it asks a chat-completion model
// for a short, concrete image search phrase. Failures here are always soft;
// image strategies fall back to the plain word.
package query
