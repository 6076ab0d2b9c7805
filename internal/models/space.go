package models

import (
	"net/url"
	"strconv"
)

// SpaceType categorises a bookable space.
type SpaceType string

const (
	SpaceTypeStudy   SpaceType = "STUDY"
	SpaceTypeParty   SpaceType = "PARTY"
	SpaceTypeMeeting SpaceType = "MEETING"
)

// SpaceStatus tells whether a space accepts reservations.
type SpaceStatus string

const (
	SpaceOpen   SpaceStatus = "OPEN"
	SpaceClosed SpaceStatus = "CLOSED"
)

// Space is the full space detail.
type Space struct {
	ID           int64       `json:"id"`
	SpaceName    string      `json:"spaceName"`
	Description  string      `json:"description,omitempty"`
	ImageURL     string      `json:"imageUrl"`
	SpaceType    SpaceType   `json:"spaceType"`
	PricePerHour int64       `json:"pricePerHour"`
	Location     string      `json:"location"`
	Capacity     int         `json:"capacity"`
	SpaceStatus  SpaceStatus `json:"spaceStatus"`
	CreatedAt    string      `json:"createdAt"`
}

// SpaceListItem is the catalog entry shown in search results.
type SpaceListItem struct {
	ID           int64     `json:"id"`
	SpaceName    string    `json:"spaceName"`
	ImageURL     string    `json:"imageUrl"`
	SpaceType    SpaceType `json:"spaceType"`
	PricePerHour int64     `json:"pricePerHour"`
	Location     string    `json:"location"`
	Capacity     int       `json:"capacity"`
}

// ListItem returns the catalog view of s.
func (s Space) ListItem() SpaceListItem {
	return SpaceListItem{
		ID:           s.ID,
		SpaceName:    s.SpaceName,
		ImageURL:     s.ImageURL,
		SpaceType:    s.SpaceType,
		PricePerHour: s.PricePerHour,
		Location:     s.Location,
		Capacity:     s.Capacity,
	}
}

// SpaceSearch holds the catalog filters. Zero values are left out of the query.
type SpaceSearch struct {
	Location  string    `json:"location,omitempty"`
	SpaceType SpaceType `json:"spaceType,omitempty"`
	MinPrice  *int64    `json:"minPrice,omitempty"`
	MaxPrice  *int64    `json:"maxPrice,omitempty"`
	Page      *int      `json:"page,omitempty"`
	Size      *int      `json:"size,omitempty"`
	Sort      string    `json:"sort,omitempty"`
}

// Query encodes the filters as URL query values.
func (s SpaceSearch) Query() url.Values {
	q := url.Values{}
	if s.Location != "" {
		q.Set("location", s.Location)
	}
	if s.SpaceType != "" {
		q.Set("spaceType", string(s.SpaceType))
	}
	if s.MinPrice != nil {
		q.Set("minPrice", strconv.FormatInt(*s.MinPrice, 10))
	}
	if s.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatInt(*s.MaxPrice, 10))
	}
	if s.Page != nil {
		q.Set("page", strconv.Itoa(*s.Page))
	}
	if s.Size != nil {
		q.Set("size", strconv.Itoa(*s.Size))
	}
	if s.Sort != "" {
		q.Set("sort", s.Sort)
	}
	return q
}

// ParseSpaceSearch is the inverse of SpaceSearch.Query. Malformed numbers are ignored.
func ParseSpaceSearch(q url.Values) SpaceSearch {
	s := SpaceSearch{
		Location:  q.Get("location"),
		SpaceType: SpaceType(q.Get("spaceType")),
		Sort:      q.Get("sort"),
	}
	if v, err := strconv.ParseInt(q.Get("minPrice"), 10, 64); err == nil {
		s.MinPrice = &v
	}
	if v, err := strconv.ParseInt(q.Get("maxPrice"), 10, 64); err == nil {
		s.MaxPrice = &v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		s.Page = &v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil {
		s.Size = &v
	}
	return s
}
