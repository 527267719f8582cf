package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DioBrando1866/tekken-tournaments/middleware"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/services"
)

const defaultPageSize = 20

type TournamentHandler struct {
	tournamentService services.TournamentService
	responder
}

func NewTournamentHandler(ts services.TournamentService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		responder:         newResponder(logger),
	}
}

// CreateHandler godoc
// @Summary      Create a tournament
// @Tags         tournaments
// @Accept       json
// @Produce      json
// @Param        input body services.CreateTournamentInput true "Tournament settings"
// @Success      201 {object} models.Tournament
// @Failure      400,401,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required to create tournament")
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), currentUserID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusCreated, jsonResponse{"tournament": tournament})
}

// GetByIDHandler godoc
// @Summary      Tournament details with players and bracket
// @Tags         tournaments
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Success      200 {object} models.Tournament
// @Failure      400,404 {object} map[string]string
// @Router       /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournamentByID(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

// UpdateHandler godoc
// @Summary      Update tournament settings
// @Description  Only the fields present in the body change. Type, rounds per match and max players are frozen once the bracket is generated.
// @Tags         tournaments
// @Accept       json
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Param        input body services.UpdateTournamentInput true "Changed settings"
// @Success      200 {object} models.Tournament
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID} [put]
func (h *TournamentHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required to update tournament")
		return
	}

	var input services.UpdateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.UpdateTournament(r.Context(), currentUserID, id, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

// DeleteHandler godoc
// @Summary      Delete a tournament with its players and bracket
// @Tags         tournaments
// @Param        tournamentID path int true "Tournament ID"
// @Success      204
// @Failure      400,401,403,404 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID} [delete]
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required to delete tournament")
		return
	}

	if err := h.tournamentService.DeleteTournament(r.Context(), currentUserID, id); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListHandler godoc
// @Summary      List public tournaments
// @Tags         tournaments
// @Produce      json
// @Param        status query string false "registration, active or completed"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200 {array} models.Tournament
// @Failure      400 {object} map[string]string
// @Router       /tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	input, err := listInputFromQuery(r)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	h.list(w, r, input)
}

// ListMineHandler godoc
// @Summary      List tournaments created by the caller
// @Tags         tournaments
// @Produce      json
// @Param        status query string false "registration, active or completed"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200 {array} models.Tournament
// @Failure      400,401 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/mine [get]
func (h *TournamentHandler) ListMineHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required")
		return
	}
	input, err := listInputFromQuery(r)
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	input.CreatorID = &currentUserID
	h.list(w, r, input)
}

func (h *TournamentHandler) list(w http.ResponseWriter, r *http.Request, input services.ListTournamentsInput) {
	tournaments, err := h.tournamentService.ListTournaments(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if tournaments == nil {
		tournaments = []models.Tournament{}
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"tournaments": tournaments})
}

func listInputFromQuery(r *http.Request) (services.ListTournamentsInput, error) {
	var input services.ListTournamentsInput

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		switch status {
		case models.StatusRegistration, models.StatusActive, models.StatusCompleted:
			input.Status = &status
		default:
			return input, fmt.Errorf("invalid status query parameter %q", statusStr)
		}
	}

	var err error
	if input.Limit, err = queryInt(r, "limit", defaultPageSize, 1); err != nil {
		return input, err
	}
	if input.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
		return input, err
	}
	return input, nil
}

// ListPlayersHandler godoc
// @Summary      Tournament roster in registration order
// @Tags         players
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Success      200 {array} models.Player
// @Failure      400,404 {object} map[string]string
// @Router       /tournaments/{tournamentID}/players [get]
func (h *TournamentHandler) ListPlayersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	players, err := h.tournamentService.ListPlayers(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if players == nil {
		players = []models.Player{}
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"players": players})
}

// RegisterPlayerHandler godoc
// @Summary      Register a player
// @Description  Private tournaments require the tournament password.
// @Tags         players
// @Accept       json
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Param        input body services.RegisterPlayerInput true "Player"
// @Success      201 {object} models.Player
// @Failure      400,403,404,409 {object} map[string]string
// @Router       /tournaments/{tournamentID}/players [post]
func (h *TournamentHandler) RegisterPlayerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input services.RegisterPlayerInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	player, err := h.tournamentService.RegisterPlayer(r.Context(), id, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusCreated, jsonResponse{"player": player})
}

// RemovePlayerHandler godoc
// @Summary      Remove a player while registration is open
// @Tags         players
// @Param        tournamentID path int    true "Tournament ID"
// @Param        playerID     path string true "Player ID"
// @Success      204
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/players/{playerID} [delete]
func (h *TournamentHandler) RemovePlayerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required to remove players")
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if err := h.tournamentService.RemovePlayer(r.Context(), currentUserID, id, playerID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
