package http

import (
	"encoding/json"
	"net/http"
	"time"

	"live-trivia-service/internal/app"
	"live-trivia-service/internal/domain"
)

// AdminHandler exposes the admin controls over plain JSON endpoints: round
// and question authoring, the guest list, and the activation lifecycle.
// Authentication sits in front of this handler and is not its concern.
type AdminHandler struct {
	service *app.Service
}

func NewAdminHandler(service *app.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// Register mounts the admin routes on the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/rounds", h.handleRounds)
	mux.HandleFunc("/admin/rounds/guestlist", h.handleGuestList)
	mux.HandleFunc("/admin/questions", h.handleQuestions)
	mux.HandleFunc("/admin/questions/activate", h.handleActivate)
	mux.HandleFunc("/admin/questions/status", h.handleStatus)
	mux.HandleFunc("/board", h.handleBoard)
}

type createRoundRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"startAt"`
}

func (h *AdminHandler) handleRounds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createRoundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		round, err := h.service.CreateRound(r.Context(), req.Title, req.Description, req.StartAt)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, round)
	case http.MethodDelete:
		roundID := r.URL.Query().Get("roundId")
		if roundID == "" {
			http.Error(w, "missing roundId", http.StatusBadRequest)
			return
		}
		if err := h.service.DeleteRound(r.Context(), roundID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type guestListRequest struct {
	RoundID string   `json:"roundId"`
	Emails  []string `json:"emails"`
}

func (h *AdminHandler) handleGuestList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req guestListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.SetGuestList(r.Context(), req.RoundID, req.Emails); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *AdminHandler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var question domain.Question
		if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		created, err := h.service.AddQuestion(r.Context(), question)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		roundID := r.URL.Query().Get("roundId")
		if roundID == "" {
			http.Error(w, "missing roundId", http.StatusBadRequest)
			return
		}
		questions, err := h.service.ListQuestions(r.Context(), roundID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, questions)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	questionID := r.URL.Query().Get("questionId")
	if questionID == "" {
		http.Error(w, "missing questionId", http.StatusBadRequest)
		return
	}
	if err := h.service.ActivateQuestion(r.Context(), questionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"activated": true})
}

func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	questionID := r.URL.Query().Get("questionId")
	status := domain.QuestionStatus(r.URL.Query().Get("status"))
	switch status {
	case domain.QuestionWaiting, domain.QuestionActive, domain.QuestionIntermission, domain.QuestionEnded:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	if err := h.service.SetQuestionStatus(r.Context(), questionID, status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *AdminHandler) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roundID := r.URL.Query().Get("roundId")
	if roundID == "" {
		http.Error(w, "missing roundId", http.StatusBadRequest)
		return
	}
	board, err := h.service.Board(r.Context(), roundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrRoundNotFound, domain.ErrQuestionNotFound, domain.ErrSubmissionNotFound, domain.ErrRoomCodeNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case domain.ErrQuestionNotActive, domain.ErrAlreadyJoined, domain.ErrNotOnGuestList, domain.ErrNoGuestList:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
