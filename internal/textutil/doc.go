// Package textutil provides lexical helpers for prompt construction:
// lowercase tokenization and near-duplicate name folding.
package textutil
