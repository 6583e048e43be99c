package util

import (
	"strings"
	"testing"
	"time"
)

func TestNewProtocol(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	protocol := NewProtocol(now)
	if !strings.HasPrefix(protocol, "CNV-20260301-") {
		t.Fatalf("formato inesperado: %s", protocol)
	}
	if len(protocol) != len("CNV-20260301-")+6 {
		t.Fatalf("sufixo deveria ter 6 caracteres: %s", protocol)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := NewProtocol(now)
		if seen[p] {
			t.Fatalf("protocolo repetido: %s", p)
		}
		seen[p] = true
	}
}

func TestOnlyDigits(t *testing.T) {
	if got := OnlyDigits("(11) 99900-1234"); got != "11999001234" {
		t.Fatalf("esperava 11999001234, obteve %s", got)
	}
	if got := OnlyDigits("abc"); got != "" {
		t.Fatalf("esperava vazio, obteve %s", got)
	}
}

func TestFormatCPF(t *testing.T) {
	if got := FormatCPF("12345678901"); got != "123.456.789-01" {
		t.Fatalf("máscara incorreta: %s", got)
	}
	// já mascarado é normalizado do mesmo jeito
	if got := FormatCPF("123.456.789-01"); got != "123.456.789-01" {
		t.Fatalf("máscara incorreta: %s", got)
	}
	// comprimento errado fica intocado
	if got := FormatCPF("1234"); got != "1234" {
		t.Fatalf("valor curto deveria passar intocado: %s", got)
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("maria@example.com"); err != nil {
		t.Fatalf("email válido rejeitado: %v", err)
	}
	if err := ValidateEmail("sem-arroba"); err == nil {
		t.Fatalf("email inválido aceito")
	}
	if err := ValidateEmail("  "); err == nil {
		t.Fatalf("email vazio aceito")
	}
}
