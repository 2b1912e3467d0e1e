package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tripstay/internal/domain"
	"tripstay/internal/models"
	"tripstay/internal/repository"
)

type ListingHandler struct {
	listings *repository.ListingRepository
}

func NewListingHandler(listings *repository.ListingRepository) *ListingHandler {
	return &ListingHandler{listings: listings}
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req struct {
		Title         string          `json:"title" binding:"required,max=200"`
		Description   string          `json:"description"`
		PricePerNight decimal.Decimal `json:"price_per_night" binding:"required"`
		Address       string          `json:"address" binding:"max=255"`
		HostName      string          `json:"host_name" binding:"max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	listing := &models.Listing{
		Title:         req.Title,
		Description:   req.Description,
		PricePerNight: req.PricePerNight,
		Address:       req.Address,
		HostName:      req.HostName,
	}
	if err := h.listings.Create(listing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "listing create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "listing": listing})
}

func (h *ListingHandler) List(c *gin.Context) {
	listings, err := h.listings.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "listing query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "listings": listings})
}

func (h *ListingHandler) Get(c *gin.Context) {
	listing, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "listing": listing})
}

func (h *ListingHandler) Update(c *gin.Context) {
	listing, ok := h.load(c)
	if !ok {
		return
	}
	var req struct {
		Title         *string          `json:"title" binding:"omitempty,max=200"`
		Description   *string          `json:"description"`
		PricePerNight *decimal.Decimal `json:"price_per_night"`
		Address       *string          `json:"address" binding:"omitempty,max=255"`
		HostName      *string          `json:"host_name" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.PricePerNight != nil {
		listing.PricePerNight = *req.PricePerNight
	}
	if req.Address != nil {
		listing.Address = *req.Address
	}
	if req.HostName != nil {
		listing.HostName = *req.HostName
	}
	if err := h.listings.Update(listing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "listing update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "listing": listing})
}

func (h *ListingHandler) CreateReview(c *gin.Context) {
	listing, ok := h.load(c)
	if !ok {
		return
	}
	var req struct {
		AuthorName string `json:"author_name" binding:"required,max=100"`
		Rating     int    `json:"rating" binding:"required,min=1,max=5"`
		Comment    string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	review := &models.Review{
		ListingID:  listing.ID,
		AuthorName: req.AuthorName,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := h.listings.CreateReview(review); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "review create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review": review})
}

func (h *ListingHandler) ListReviews(c *gin.Context) {
	listing, ok := h.load(c)
	if !ok {
		return
	}
	reviews, err := h.listings.ListReviews(listing.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "review query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reviews": reviews})
}

func (h *ListingHandler) load(c *gin.Context) (*models.Listing, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid listing id"})
		return nil, false
	}
	listing, err := h.listings.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Listing not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "listing query failed"})
		}
		return nil, false
	}
	return listing, true
}
