package services

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Aklabu/e-commerce/internal/apperr"
)

const (
	MaxTradeDocuments = 5
	MaxDocumentBytes  = 10 << 20
)

var allowedDocumentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// DocumentUpload is a supporting document as received from the client.
type DocumentUpload struct {
	FileName string
	Data     []byte
}

// CheckedDocument is an upload whose type was confirmed from its content.
type CheckedDocument struct {
	DocumentUpload
	ContentType string
	Extension   string
}

// CheckDocuments enforces the count limit and detects each file's real type
// from its bytes rather than trusting the name or the client header.
func CheckDocuments(docs []DocumentUpload) ([]CheckedDocument, error) {
	if len(docs) > MaxTradeDocuments {
		return nil, apperr.New(apperr.KindTooManyDocuments,
			fmt.Sprintf("You can upload at most %d documents.", MaxTradeDocuments)).
			With("max", MaxTradeDocuments)
	}

	checked := make([]CheckedDocument, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Data) == 0 {
			return nil, apperr.New(apperr.KindInvalidDocument, "Document is empty.").With("file", doc.FileName)
		}
		if len(doc.Data) > MaxDocumentBytes {
			return nil, apperr.New(apperr.KindInvalidDocument, "Each document must be 10MB or smaller.").
				With("file", doc.FileName)
		}

		mtype := mimetype.Detect(doc.Data)
		ext, ok := allowedDocumentTypes[mtype.String()]
		if !ok {
			return nil, apperr.New(apperr.KindInvalidDocument, "Only PDF, JPG and PNG documents are accepted.").
				With("file", doc.FileName).
				With("detected", mtype.String())
		}
		checked = append(checked, CheckedDocument{DocumentUpload: doc, ContentType: mtype.String(), Extension: ext})
	}
	return checked, nil
}
