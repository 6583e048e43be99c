package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// NoopUploader descarta o conteúdo e devolve uma URL local. Uso em
// desenvolvimento, quando não há bucket configurado.
type NoopUploader struct {
	Logger zerolog.Logger
}

// Upload registra o descarte e devolve uma URL fictícia estável.
func (n NoopUploader) Upload(_ context.Context, input UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(input.Key) == "" {
		return nil, fmt.Errorf("storage: chave do objeto obrigatória")
	}

	n.Logger.Warn().
		Str("key", input.Key).
		Int("bytes", len(input.Body)).
		Msg("storage não configurado; documento descartado")

	return &UploadResult{URL: "local://" + strings.TrimLeft(input.Key, "/")}, nil
}
