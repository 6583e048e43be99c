package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func int64Ptr(v int64) *int64 { return &v }

func TestWebhookDispatcher_PayloadContract(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewWebhookDispatcher(server.URL)
	err := dispatcher.Dispatch(context.Background(), Closure{
		Protocol:       "CNV-20260301-ABC123",
		FullName:       "Maria Oliveira",
		Phone:          "11999001234",
		Outcome:        OutcomeApproved,
		Message:        "Convênio liberado",
		AccountID:      int64Ptr(7),
		ConversationID: int64Ptr(42),
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("método esperado POST, obteve %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("content-type inesperado: %s", gotContentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("corpo não é JSON: %v", err)
	}

	for _, key := range []string{"protocolo", "nome_colaborador", "telefone_whatsapp", "status", "motivo", "account_id", "conversation_id", "mensagem_rh"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("payload sem a chave %q: %s", key, gotBody)
		}
	}

	if payload["protocolo"] != "CNV-20260301-ABC123" {
		t.Fatalf("protocolo inesperado: %v", payload["protocolo"])
	}
	if payload["status"] != "aprovado" {
		t.Fatalf("status esperado aprovado, obteve %v", payload["status"])
	}
	if payload["motivo"] != nil {
		t.Fatalf("motivo de aprovação deveria ser null, obteve %v", payload["motivo"])
	}
	if payload["mensagem_rh"] != "Convênio liberado" {
		t.Fatalf("mensagem_rh inesperada: %v", payload["mensagem_rh"])
	}
	if payload["account_id"].(float64) != 7 || payload["conversation_id"].(float64) != 42 {
		t.Fatalf("identificadores do canal incorretos: %s", gotBody)
	}
}

func TestWebhookDispatcher_RejectionCarriesReason(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := NewWebhookDispatcher(server.URL)
	err := dispatcher.Dispatch(context.Background(), Closure{
		Protocol: "CNV-20260301-DEF456",
		FullName: "João Pereira",
		Outcome:  OutcomeRejected,
		Reason:   "fora da política",
		Message:  "Pedido não aprovado",
	})
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("corpo não é JSON: %v", err)
	}
	if payload["status"] != "reprovado" {
		t.Fatalf("status esperado reprovado, obteve %v", payload["status"])
	}
	if payload["motivo"] != "fora da política" {
		t.Fatalf("motivo inesperado: %v", payload["motivo"])
	}
}

func TestWebhookDispatcher_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := NewWebhookDispatcher(server.URL)
	err := dispatcher.Dispatch(context.Background(), Closure{Protocol: "P1", Outcome: OutcomeApproved})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("esperava erro com o status remoto, obteve %v", err)
	}
}

func TestNewWebhookDispatcher_EmptyURL(t *testing.T) {
	if NewWebhookDispatcher("") != nil {
		t.Fatalf("URL vazia deveria desligar o dispatcher")
	}
}

func TestAsync_DeliversInBackground(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(done)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	async := NewAsync(NewWebhookDispatcher(server.URL), zerolog.Nop())
	if err := async.Dispatch(context.Background(), Closure{Protocol: "P1", Outcome: OutcomeApproved}); err != nil {
		t.Fatalf("disparo assíncrono nunca devolve erro: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook não foi entregue em segundo plano")
	}
}

func TestAsync_NilDispatcherIsNoop(t *testing.T) {
	async := NewAsync(nil, zerolog.Nop())
	if err := async.Dispatch(context.Background(), Closure{Protocol: "P1"}); err != nil {
		t.Fatalf("sem dispatcher configurado o envio é descartado: %v", err)
	}
}
