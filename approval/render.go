package approval

import (
	"context"
)

// =============================================================================
// DOCUMENT RENDERING - Terminal requests become printable documents
// =============================================================================

// RenderedDocument is the output of a renderer: raw bytes plus enough
// metadata for an HTTP layer to serve them.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentRenderer turns a decided request into a printable document
// with its collected signatures. Only terminal requests are rendered;
// the engine enforces that before calling.
type DocumentRenderer interface {
	Render(ctx context.Context, req *Request, requester Employee, signers map[SignatureRole]Employee) (*RenderedDocument, error)
}
