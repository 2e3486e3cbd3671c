// Package enrich coordinates media generation for flashcards: text to
// speech for the card's audio segments and a searched image for the
// primary word, both routed through the content-addressed cache so
// repeated text never hits a provider twice. Individual asset failures
// degrade that field only; a card always comes back usable.
package enrich
