package storage

import "context"

// UploadInput descreve o documento a ser enviado ao bucket.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult informa o destino final do documento.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader abstrai o armazenamento dos comprovantes em PDF.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}
