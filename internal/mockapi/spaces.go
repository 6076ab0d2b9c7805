package mockapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/spacebook/client/internal/models"
)

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	search := models.ParseSpaceSearch(r.URL.Query())

	s.mu.Lock()
	matches := make([]*models.Space, 0, len(s.spaces))
	for _, space := range s.spaces {
		if space.SpaceStatus != models.SpaceOpen {
			continue
		}
		if search.Location != "" && !strings.Contains(strings.ToLower(space.Location), strings.ToLower(search.Location)) {
			continue
		}
		if search.SpaceType != "" && space.SpaceType != search.SpaceType {
			continue
		}
		if search.MinPrice != nil && space.PricePerHour < *search.MinPrice {
			continue
		}
		if search.MaxPrice != nil && space.PricePerHour > *search.MaxPrice {
			continue
		}
		matches = append(matches, space)
	}
	s.mu.Unlock()

	sortSpaces(matches, search.Sort)

	items := make([]models.SpaceListItem, 0, len(matches))
	for _, space := range matches {
		items = append(items, space.ListItem())
	}

	page, size := 0, 10
	if search.Page != nil {
		page = *search.Page
	}
	if search.Size != nil {
		size = *search.Size
	}
	writeData(w, http.StatusOK, paginate(items, page, size))
}

func (s *Server) handleGetSpace(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	space := s.findSpace(pathID(r))
	var found models.Space
	if space != nil {
		found = *space
	}
	s.mu.Unlock()

	if space == nil {
		writeFailure(w, http.StatusNotFound, "space not found")
		return
	}
	writeData(w, http.StatusOK, found)
}

// handleReservedTimes lists the confirmed hour blocks of a space on one day.
// A block crossing midnight is clipped to [0, 24).
func (s *Server) handleReservedTimes(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.Local)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}
	dayEnd := day.AddDate(0, 0, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := pathID(r)
	if s.findSpace(id) == nil {
		writeFailure(w, http.StatusNotFound, "space not found")
		return
	}

	reserved := []models.ReservedTime{}
	for _, b := range s.bookings {
		if b.SpaceID != id || b.ReservationStatus != models.ReservationConfirmed {
			continue
		}
		if !b.start.Before(dayEnd) || !b.end.After(day) {
			continue
		}
		startHour, endHour := 0, 24
		if !b.start.Before(day) {
			startHour = b.start.Hour()
		}
		if b.end.Before(dayEnd) {
			endHour = b.end.Hour()
		}
		reserved = append(reserved, models.ReservedTime{StartHour: startHour, EndHour: endHour})
	}
	writeData(w, http.StatusOK, reserved)
}

// handleRecommendations ranks open spaces by how many words of the query
// appear in their name, description, location or type.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if !decodeBody(r, &req) || strings.TrimSpace(req.Query) == "" {
		writeFailure(w, http.StatusBadRequest, "query is required")
		return
	}
	words := strings.Fields(strings.ToLower(req.Query))

	type scored struct {
		item  models.SpaceListItem
		score int
	}

	s.mu.Lock()
	var ranked []scored
	for _, space := range s.spaces {
		if space.SpaceStatus != models.SpaceOpen {
			continue
		}
		text := strings.ToLower(strings.Join([]string{
			space.SpaceName, space.Description, space.Location, string(space.SpaceType),
		}, " "))
		score := 0
		for _, word := range words {
			if strings.Contains(text, word) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{item: space.ListItem(), score: score})
		}
	}
	s.mu.Unlock()

	// Stable insertion sort keeps catalog order among equal scores.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	items := []models.SpaceListItem{}
	for i := 0; i < len(ranked) && i < 3; i++ {
		items = append(items, ranked[i].item)
	}
	writeData(w, http.StatusOK, items)
}
