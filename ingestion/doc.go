// Package ingestion builds a vector index from source documents.
//
// The Pipeline runs the build path:
//   - Load documents from a Source (files that fail to load are skipped)
//   - Split them into passages with the chunker
//   - Embed the passages in batches on a worker pool
//   - Append vectors and metadata records to the index in passage order
//   - Save the index to a storage.Store as a new snapshot
//
// Embedding errors fail the build; nothing is appended to the index unless
// every batch succeeded.
package ingestion
