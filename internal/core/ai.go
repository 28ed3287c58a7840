package core

import "context"

// Part is one piece of a provider request: either text or a binary blob
// tagged with its MIME type.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func TextPart(s string) Part { return Part{Text: s} }

func BlobPart(mimeType string, data []byte) Part {
	if data == nil {
		data = []byte{}
	}
	return Part{MIMEType: mimeType, Data: data}
}

// IsBlob reports whether the part carries binary data.
func (p Part) IsBlob() bool { return p.Data != nil }

type LLMProvider interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}
