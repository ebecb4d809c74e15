package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// StatsHandler exposes satisfaction and monthly reporting.
type StatsHandler struct {
	store *store.Store
}

// NewStatsHandler constructs handler.
func NewStatsHandler(s *store.Store) *StatsHandler {
	return &StatsHandler{store: s}
}

// Satisfaction handles GET /stats/satisfaction.
// Optional month and year query params restrict to one calendar month.
func (h *StatsHandler) Satisfaction(c *fiber.Ctx) error {
	filter, err := monthFilterFromQuery(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.store.SatisfactionStats(filter)})
}

// Monthly handles GET /stats/monthly. Defaults to the current month.
func (h *StatsHandler) Monthly(c *fiber.Ctx) error {
	now := time.Now()
	month := now.Month()
	year := now.Year()

	if filter, err := monthFilterFromQuery(c); err != nil {
		return err
	} else if filter != nil {
		month = filter.Month
		year = filter.Year
	}

	return c.JSON(fiber.Map{"data": h.store.MonthlyStats(month, year)})
}

func monthFilterFromQuery(c *fiber.Ctx) (*store.MonthFilter, error) {
	monthQ := c.QueryInt("month", 0)
	yearQ := c.QueryInt("year", 0)
	if monthQ == 0 && yearQ == 0 {
		return nil, nil
	}
	if monthQ < 1 || monthQ > 12 {
		return nil, util.NewValidationError("month must be between 1 and 12", nil)
	}
	if yearQ < 2000 {
		return nil, util.NewValidationError("year must be provided with month", nil)
	}
	return &store.MonthFilter{Month: time.Month(monthQ), Year: yearQ}, nil
}
