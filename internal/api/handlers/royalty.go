package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/kdp-pulse/internal/services"
	"github.com/irfndi/kdp-pulse/internal/utils"
)

type RoyaltyHandler struct {
	logger *logrus.Logger
}

func NewRoyaltyHandler(logger *logrus.Logger) *RoyaltyHandler {
	return &RoyaltyHandler{logger: orDefaultLogger(logger)}
}

type RoyaltyQuery struct {
	Price    float64 `form:"price" binding:"required,gt=0"`
	Pages    int     `form:"pages" binding:"gte=0"`
	Country  string  `form:"country"`
	Interior string  `form:"interior" binding:"omitempty,oneof=black standard_color premium_color"`
	BSR      float64 `form:"bsr" binding:"gte=0"`
}

type RoyaltyResponse struct {
	Price        float64                  `json:"price"`
	PageCount    int                      `json:"page_count"`
	Country      string                   `json:"country"`
	Market       services.Market          `json:"market"`
	Interior     services.InteriorType    `json:"interior"`
	VATRate      float64                  `json:"vat_rate"`
	PrintingCost float64                  `json:"printing_cost"`
	Royalty      float64                  `json:"royalty"`
	Income       *services.IncomeEstimate `json:"income,omitempty"`
}

// Estimate returns the per-copy paperback royalty and, when a BSR is
// given, a monthly income band
func (h *RoyaltyHandler) Estimate(c *gin.Context) {
	var q RoyaltyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		if !utils.IsValidationError(err) {
			err = utils.NewValidationErrorf("invalid query: %v", err)
		}
		respondError(c, h.logger, err, "invalid query")
		return
	}

	country := q.Country
	if country == "" {
		country = "US"
	}
	interior := services.ParseInteriorType(q.Interior)
	market := services.ResolveMarket(country)
	pages := services.ClampPageCount(q.Pages)

	royalty := services.EstimateRoyaltyFor(services.RoyaltyInput{
		Price:     q.Price,
		PageCount: q.Pages,
		Country:   country,
		Interior:  interior,
	})

	resp := RoyaltyResponse{
		Price:        q.Price,
		PageCount:    pages,
		Country:      country,
		Market:       market,
		Interior:     interior,
		VATRate:      services.VATRate(country),
		PrintingCost: services.EstimatePrintingCost(pages, market, interior),
		Royalty:      royalty,
	}
	if q.BSR > 0 {
		income := services.EstimateIncomeFromBSR(q.BSR, royalty)
		resp.Income = &income
	}
	c.JSON(http.StatusOK, resp)
}
