package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ignatij/tripflow/internal/log"
	"github.com/ignatij/tripflow/pkg/backend"
	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/service"
	"github.com/pkg/errors"
)

// Session is the part of service.WorkflowStatusClient the server drives.
type Session interface {
	StartWorkflow(ctx context.Context, req models.TravelRequest) (string, error)
	SubmitApproval(ctx context.Context, decision models.ApprovalDecision) error
	Reset()
	View() models.SessionView
}

// StartServer serves the session on port until the listener fails.
func StartServer(port string, session Session) error {
	log.GetLogger().Infof("Starting tripflow session server on :%s", port)
	return http.ListenAndServe(":"+port, NewMux(session))
}

func NewMux(session Session) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/session", SessionHandler(session))
	mux.HandleFunc("/session/approve", DecisionHandler(session, true))
	mux.HandleFunc("/session/reject", DecisionHandler(session, false))
	mux.HandleFunc("/session/reset", ResetHandler(session))
	return mux
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "tripflow session server is running")
}

func SessionHandler(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, session.View())
		case http.MethodPost:
			startSessionHTTP(w, r, session)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func startSessionHTTP(w http.ResponseWriter, r *http.Request, session Session) {
	var req models.TravelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.GetLogger().Errorf("Invalid body in POST /session: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if _, err := session.StartWorkflow(r.Context(), req); err != nil {
		log.GetLogger().Errorf("Failed to start workflow: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, session.View())
}

type decisionBody struct {
	Comments string `json:"comments"`
}

func DecisionHandler(session Session, approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body decisionBody
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
		}
		decision := models.ApprovalDecision{Approved: approved, Comments: body.Comments}
		if err := session.SubmitApproval(r.Context(), decision); err != nil {
			log.GetLogger().Errorf("Failed to submit decision: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session.View())
	}
}

func ResetHandler(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		session.Reset()
		writeJSON(w, http.StatusOK, session.View())
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, backend.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrSessionActive), errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrStale):
		code = http.StatusConflict
	case errors.Is(err, backend.ErrNotFound):
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
