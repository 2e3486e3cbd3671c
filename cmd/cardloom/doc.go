// Command cardloom enriches language-learning flashcards with generated
// audio and illustration images, deduplicating media through a
// content-addressed cache.
package main
