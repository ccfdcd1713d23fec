// Package ingestion turns machine descriptions and their documents into
// embedded, deduplicated vector records.
//
// A Pipeline accepts folders, files and http(s) URLs. JSON property graphs
// are normalized into facts; each graph becomes one parent record holding a
// whole-document embedding plus chunk records that reference it. PDF
// references found inside a graph are fetched and ingested as well, carrying
// the referencing machine's metadata. Standalone PDFs are split into
// heading delimited sections before chunking.
//
// Deduplication state lives in a RunContext created per Ingest call: a chunk
// whose content hash was already seen, or a PDF whose bytes were already
// seen, is skipped for the rest of that run. Nothing is shared across runs;
// record IDs derive from content, so re-ingesting replaces records in the
// store instead of duplicating them.
//
// PDF fetching and text extraction run on an ants worker pool. Parse and
// fetch failures are logged and skipped and never abort the run.
package ingestion
