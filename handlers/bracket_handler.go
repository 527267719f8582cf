package handlers

import (
	"log/slog"
	"net/http"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/middleware"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/services"
)

type recordWinnerRequest struct {
	Round    int    `json:"round"`
	Match    int    `json:"match"`
	WinnerID string `json:"winner_id"`
}

type recordPointRequest struct {
	Round int           `json:"round"`
	Match int           `json:"match"`
	Side  brackets.Side `json:"side"`
}

type BracketHandler struct {
	bracketService services.BracketService
	responder
}

func NewBracketHandler(bs services.BracketService, logger *slog.Logger) *BracketHandler {
	return &BracketHandler{
		bracketService: bs,
		responder:      newResponder(logger),
	}
}

// GenerateHandler godoc
// @Summary      Generate or regenerate the bracket
// @Description  Shuffles the registered players and opens the tournament.
// @Tags         bracket
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Success      201 {object} models.BracketSnapshot
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/bracket [post]
func (h *BracketHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	h.withCreator(w, r, http.StatusCreated, func(userID string, tournamentID int) (*models.BracketSnapshot, error) {
		return h.bracketService.GenerateBracket(r.Context(), userID, tournamentID)
	})
}

// GetHandler godoc
// @Summary      Current bracket snapshot
// @Tags         bracket
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Success      200 {object} models.BracketSnapshot
// @Failure      400,404 {object} map[string]string
// @Router       /tournaments/{tournamentID}/bracket [get]
func (h *BracketHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	snap, err := h.bracketService.GetBracket(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, jsonResponse{"bracket": snap})
}

// RecordWinnerHandler godoc
// @Summary      Declare the winner of a match
// @Description  Round and match are zero-based. A different winner retracts the previous one downstream.
// @Tags         bracket
// @Accept       json
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Param        input body recordWinnerRequest true "Match result"
// @Success      200 {object} models.BracketSnapshot
// @Failure      400,401,403,404,409,422 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/bracket/winner [post]
func (h *BracketHandler) RecordWinnerHandler(w http.ResponseWriter, r *http.Request) {
	var input recordWinnerRequest
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	h.withCreator(w, r, http.StatusOK, func(userID string, tournamentID int) (*models.BracketSnapshot, error) {
		return h.bracketService.RecordWinner(r.Context(), userID, tournamentID, input.Round, input.Match, input.WinnerID)
	})
}

// RecordPointHandler godoc
// @Summary      Award one point in a score elimination match
// @Tags         bracket
// @Accept       json
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Param        input body recordPointRequest true "Scoring side"
// @Success      200 {object} models.BracketSnapshot
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/bracket/point [post]
func (h *BracketHandler) RecordPointHandler(w http.ResponseWriter, r *http.Request) {
	var input recordPointRequest
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	h.withCreator(w, r, http.StatusOK, func(userID string, tournamentID int) (*models.BracketSnapshot, error) {
		return h.bracketService.RecordPoint(r.Context(), userID, tournamentID, input.Round, input.Match, input.Side)
	})
}

// SyncRoundHandler godoc
// @Summary      Pair the winners of a fully resolved round
// @Tags         bracket
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Param        round        path int true "Zero-based round index"
// @Success      200 {object} models.BracketSnapshot
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/bracket/rounds/{round}/sync [post]
func (h *BracketHandler) SyncRoundHandler(w http.ResponseWriter, r *http.Request) {
	round, err := getIndexFromURL(r, "round")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	h.withCreator(w, r, http.StatusOK, func(userID string, tournamentID int) (*models.BracketSnapshot, error) {
		return h.bracketService.SyncRound(r.Context(), userID, tournamentID, round)
	})
}

// ResolveByesHandler godoc
// @Summary      Advance every player without an opponent
// @Description  Resolves byes in any round whose empty slot has no feeder match left, repeating until nothing moves.
// @Tags         bracket
// @Produce      json
// @Param        tournamentID path int true "Tournament ID"
// @Success      200 {object} models.BracketSnapshot
// @Failure      400,401,403,404,409 {object} map[string]string
// @Security     BearerAuth
// @Router       /tournaments/{tournamentID}/bracket/byes [post]
func (h *BracketHandler) ResolveByesHandler(w http.ResponseWriter, r *http.Request) {
	h.withCreator(w, r, http.StatusOK, func(userID string, tournamentID int) (*models.BracketSnapshot, error) {
		return h.bracketService.ResolveByes(r.Context(), userID, tournamentID)
	})
}

// withCreator runs an authenticated bracket mutation and writes its snapshot.
func (h *BracketHandler) withCreator(w http.ResponseWriter, r *http.Request, status int, op func(userID string, tournamentID int) (*models.BracketSnapshot, error)) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		h.unauthorizedResponse(w, r, "authentication required to manage the bracket")
		return
	}

	snap, err := op(currentUserID, id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.ok(w, r, status, jsonResponse{"bracket": snap})
}
