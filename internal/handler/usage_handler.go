package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tzuhan-lo/namecard-bot/internal/repository"
)

type UsageHandler struct {
	usage repository.UsageRecordRepository
	now   func() time.Time
}

func NewUsageHandler(usage repository.UsageRecordRepository) (*UsageHandler, error) {
	if usage == nil {
		return nil, fmt.Errorf("usage repository is required")
	}
	return &UsageHandler{usage: usage, now: time.Now}, nil
}

func RegisterUsageRoutes(router fiber.Router, usage repository.UsageRecordRepository) error {
	h, err := NewUsageHandler(usage)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/usage/:userId", h.GetDailyUsage)
	return nil
}

type dailyUsageResponse struct {
	UserID         string `json:"userId"`
	Date           string `json:"date"`
	Images         int    `json:"images"`
	CardsExtracted int    `json:"cardsExtracted"`
	CardsSaved     int    `json:"cardsSaved"`
	CardsFailed    int    `json:"cardsFailed"`
}

// GetDailyUsage reports a user's usage for one calendar day. The optional
// "date" query parameter takes YYYY-MM-DD and defaults to today.
func (h *UsageHandler) GetDailyUsage(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user id is required")
	}

	day := h.now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	summary, err := h.usage.DailySummary(c.UserContext(), userID, day)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load usage summary")
	}

	return c.Status(fiber.StatusOK).JSON(dailyUsageResponse{
		UserID:         userID,
		Date:           day.Format("2006-01-02"),
		Images:         summary.Images,
		CardsExtracted: summary.CardsExtracted,
		CardsSaved:     summary.CardsSaved,
		CardsFailed:    summary.CardsFailed,
	})
}
