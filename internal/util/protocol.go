package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewProtocol gera o identificador legível de uma solicitação, único e
// nunca reutilizado (ex.: CNV-20260115-A1B2C3).
func NewProtocol(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("CNV-%s-%s", now.Format("20060102"), suffix)
}
