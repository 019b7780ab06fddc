package handler

import (
	"errors"
	"log/slog"

	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProfileHandler serves profile registration and lookup. Profiles are plain
// rows with no transactional logic, so the handler talks to the repository
// directly.
type ProfileHandler struct {
	logger *slog.Logger
	repo   profile.Repository
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(logger *slog.Logger, repo profile.Repository) *ProfileHandler {
	return &ProfileHandler{logger: logger, repo: repo}
}

// Create handles POST /api/v1/profiles
func (h *ProfileHandler) Create(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Error("Failed to check username", "error", err)
		RespondInternalError(c)
		return
	}
	if existing != nil {
		RespondConflict(c, "Username is already taken")
		return
	}

	p, err := profile.NewProfile(req.Username, req.InitialBalance)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("Failed to create profile", "username", req.Username, "error", err)
		RespondInternalError(c)
		return
	}

	h.logger.Info("Profile created", "profile_id", p.ID, "username", p.Username)
	RespondCreated(c, toProfileResponse(p))
}

// GetByID handles GET /api/v1/profiles/:id
func (h *ProfileHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid profile ID format")
		return
	}

	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound{}) {
			RespondNotFound(c, err.Error())
			return
		}
		h.logger.Error("Failed to get profile", "profile_id", id, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, toProfileResponse(p))
}
