// Package textutil provides content fingerprints and filename normalization
// used to address cached media assets.
package textutil
