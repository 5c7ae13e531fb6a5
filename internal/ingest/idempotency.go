package ingest

import "context"

// ReingestPolicy controls what Ingest does when the uploaded text hashes
// the same as an already-ready document.
type ReingestPolicy string

const (
	// ReingestSkipIfUnchanged leaves the existing document's chunks and
	// embeddings untouched.
	ReingestSkipIfUnchanged ReingestPolicy = "skip_if_unchanged"
	// ReingestOverwrite re-chunks and re-embeds even when the hash matches,
	// the default when a caller never set a policy.
	ReingestOverwrite ReingestPolicy = "overwrite"
)

// HashLookup finds a ready document by content hash, letting Ingest decide
// whether a re-upload is actually new content.
type HashLookup interface {
	LookupByHash(ctx context.Context, hash string) (documentID string, ok bool, err error)
}

// resolveReingest returns the document ID whose chunks should be (re)used,
// and whether Ingest should skip chunking/embedding entirely. lookup == nil
// or policy == ReingestOverwrite always proceeds with the requested
// documentID.
func resolveReingest(ctx context.Context, lookup HashLookup, policy ReingestPolicy, requestedDocumentID, hash string) (documentID string, skip bool, err error) {
	if lookup == nil || policy == ReingestOverwrite || policy == "" {
		return requestedDocumentID, false, nil
	}
	existingID, ok, err := lookup.LookupByHash(ctx, hash)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return requestedDocumentID, false, nil
	}
	return existingID, true, nil
}
