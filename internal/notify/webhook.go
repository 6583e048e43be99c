package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Desfechos comunicados ao canal do colaborador.
const (
	OutcomeApproved = "aprovado"
	OutcomeRejected = "reprovado"
)

// Closure descreve o encerramento de uma solicitação para o webhook.
type Closure struct {
	Protocol       string
	FullName       string
	Phone          string
	Outcome        string
	Reason         string
	Message        string
	AccountID      *int64
	ConversationID *int64
}

// Dispatcher emite o evento de encerramento para um canal externo.
type Dispatcher interface {
	Dispatch(ctx context.Context, closure Closure) error
}

// WebhookDispatcher envia o encerramento por POST JSON. O disparo é
// melhor esforço: falhas ficam a cargo do chamador registrar, nunca
// interrompem a transição já persistida.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher cria o dispatcher; URL vazia devolve nil.
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	if url == "" {
		return nil
	}
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookPayload struct {
	Protocolo        string  `json:"protocolo"`
	NomeColaborador  string  `json:"nome_colaborador"`
	TelefoneWhatsApp string  `json:"telefone_whatsapp"`
	Status           string  `json:"status"`
	Motivo           *string `json:"motivo"`
	AccountID        *int64  `json:"account_id"`
	ConversationID   *int64  `json:"conversation_id"`
	MensagemRH       *string `json:"mensagem_rh"`
}

// Dispatch envia o evento e devolve erro em falha de rede ou status
// diferente de 2xx.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, closure Closure) error {
	if d == nil || d.url == "" {
		return errors.New("webhook não configurado")
	}

	payload := webhookPayload{
		Protocolo:        closure.Protocol,
		NomeColaborador:  closure.FullName,
		TelefoneWhatsApp: closure.Phone,
		Status:           closure.Outcome,
		Motivo:           nullable(closure.Reason),
		AccountID:        closure.AccountID,
		ConversationID:   closure.ConversationID,
		MensagemRH:       nullable(closure.Message),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

// Async envolve um Dispatcher para disparo em segundo plano: devolve
// imediatamente e registra falhas no log, sem propagar ao chamador.
type Async struct {
	Dispatcher Dispatcher
	Logger     zerolog.Logger
	Timeout    time.Duration
}

// NewAsync cria o despachante assíncrono.
func NewAsync(d Dispatcher, logger zerolog.Logger) *Async {
	return &Async{Dispatcher: d, Logger: logger, Timeout: 10 * time.Second}
}

// Dispatch agenda o envio e retorna sem aguardar o resultado.
func (a *Async) Dispatch(_ context.Context, closure Closure) error {
	if a == nil || a.Dispatcher == nil {
		return nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
		defer cancel()

		if err := a.Dispatcher.Dispatch(ctx, closure); err != nil {
			a.Logger.Error().Err(err).
				Str("protocolo", closure.Protocol).
				Str("status", closure.Outcome).
				Msg("falha ao enviar webhook de encerramento")
		}
	}()
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
