package gateway

import (
	"encoding/json"
	"net/http"
)

// registerRoutes wires the webhook surface onto the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Chat provider (HMAC-signed JSON batches).
	mux.HandleFunc("POST /webhook/chat", s.handleChatWebhook)

	// Voice AI platform (bearer-authenticated).
	mux.HandleFunc("POST /webhook/voice/call-complete", s.handleCallComplete)
	mux.HandleFunc("POST /webhook/voice/transcript", s.handleTranscript)
	mux.HandleFunc("POST /webhook/voice/tool", s.handleVoiceTool)

	// Telephony provider (HMAC-signed form posts).
	mux.HandleFunc("POST /webhook/telephony", s.handleTelephonyStatus)
	mux.HandleFunc("POST /webhook/telephony/recording", s.handleTelephonyRecording)

	// Storefront (bearer-authenticated).
	mux.HandleFunc("POST /orders/confirm", s.handleOrderConfirmRequest)

	// Dashboard event feed.
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("/", handleNotFound)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
