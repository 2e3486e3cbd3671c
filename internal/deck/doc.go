// Package deck holds the domain collaborators the enrichment engine works
// against: card records, the vocabulary card type that exposes media
// generation capabilities, and the media sink that collects files for the
// downstream packaging step. The flashcard package binary format itself is
// out of scope; the sink records what a packager must bundle.
package deck
