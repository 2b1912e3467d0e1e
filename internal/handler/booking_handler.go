package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tripstay/internal/domain"
	"tripstay/internal/models"
	"tripstay/internal/repository"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	bookings *repository.BookingRepository
	listings *repository.ListingRepository
}

func NewBookingHandler(bookings *repository.BookingRepository, listings *repository.ListingRepository) *BookingHandler {
	return &BookingHandler{bookings: bookings, listings: listings}
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req struct {
		ListingID uint   `json:"listing_id" binding:"required"`
		GuestName string `json:"guest_name" binding:"required,max=100"`
		CheckIn   string `json:"check_in" binding:"required"`
		CheckOut  string `json:"check_out" binding:"required"`
		Guests    int    `json:"guests" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	checkIn, err1 := time.Parse(dateLayout, req.CheckIn)
	checkOut, err2 := time.Parse(dateLayout, req.CheckOut)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "dates must be YYYY-MM-DD"})
		return
	}
	if !checkOut.After(checkIn) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "check_out must be after check_in"})
		return
	}
	listing, err := h.listings.GetByID(req.ListingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Listing not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "listing query failed"})
		}
		return
	}
	booking := &models.Booking{
		ListingID: listing.ID,
		GuestName: req.GuestName,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Guests:    req.Guests,
	}
	booking.TotalAmount = booking.CalculateTotal(listing.PricePerNight)
	if err := h.bookings.Create(booking); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "booking create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "booking": booking})
}

func (h *BookingHandler) List(c *gin.Context) {
	bookings, err := h.bookings.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "booking query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": bookings})
}

func (h *BookingHandler) Get(c *gin.Context) {
	booking, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

func (h *BookingHandler) Update(c *gin.Context) {
	booking, ok := h.load(c)
	if !ok {
		return
	}
	var req struct {
		GuestName *string `json:"guest_name" binding:"omitempty,max=100"`
		CheckIn   *string `json:"check_in"`
		CheckOut  *string `json:"check_out"`
		Guests    *int    `json:"guests" binding:"omitempty,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.GuestName != nil {
		booking.GuestName = *req.GuestName
	}
	if req.CheckIn != nil {
		t, err := time.Parse(dateLayout, *req.CheckIn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "dates must be YYYY-MM-DD"})
			return
		}
		booking.CheckIn = t
	}
	if req.CheckOut != nil {
		t, err := time.Parse(dateLayout, *req.CheckOut)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "dates must be YYYY-MM-DD"})
			return
		}
		booking.CheckOut = t
	}
	if req.Guests != nil {
		booking.Guests = *req.Guests
	}
	if !booking.CheckOut.After(booking.CheckIn) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "check_out must be after check_in"})
		return
	}
	booking.TotalAmount = booking.CalculateTotal(booking.Listing.PricePerNight)
	if err := h.bookings.Update(booking); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "booking update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

func (h *BookingHandler) load(c *gin.Context) (*models.Booking, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid booking id"})
		return nil, false
	}
	booking, err := h.bookings.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Booking not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "booking query failed"})
		}
		return nil, false
	}
	return booking, true
}
