package http

import (
	"encoding/json"
	"net/http"
)

// Envelope é o formato único de resposta da API: data preenchido em
// sucesso, error preenchido em falha, nunca os dois.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas para o cliente.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve o envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Data: data})
}

// WriteError escreve o envelope de erro.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, Envelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}
