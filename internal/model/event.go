package model

import (
	"sort"
	"time"
)

// EventSource names the feed or channel an event came from.
type EventSource string

const (
	SourceImageUpload     EventSource = "ImageUpload"
	SourceAeronautBrewing EventSource = "AeronautBrewing"
	SourceCityOfCambridge EventSource = "CityOfCambridge"
	SourceBostonSymphony  EventSource = "BostonSymphony"
)

// Category is an event tag.
type Category string

const (
	CategoryYardSale        Category = "YardSale"
	CategoryArt             Category = "Art"
	CategoryDance           Category = "Dance"
	CategoryPerformance     Category = "Performance"
	CategoryFood            Category = "Food"
	CategoryPersonalService Category = "PersonalService"
	CategoryCivicEvent      Category = "CivicEvent"
	CategoryMusic           Category = "Music"
	CategoryEducation       Category = "Education"
	CategorySports          Category = "Sports"
	CategoryOther           Category = "Other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryYardSale, CategoryArt, CategoryDance, CategoryPerformance, CategoryFood,
	CategoryPersonalService, CategoryCivicEvent, CategoryMusic, CategoryEducation,
	CategorySports, CategoryOther,
}

var knownCategories = func() map[Category]struct{} {
	m := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// ParseCategory maps free text to a known category; unknown values become Other.
func ParseCategory(s string) Category {
	c := Category(s)
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryOther
}

// NormalizeCategories dedups and sorts so storage order is deterministic.
func NormalizeCategories(in []Category) []Category {
	seen := make(map[Category]struct{}, len(in))
	out := make([]Category, 0, len(in))
	for _, c := range in {
		c = ParseCategory(string(c))
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Event is immutable after insert; ID is assigned by the store.
type Event struct {
	ID               int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name             string      `json:"name" gorm:"type:text;not null"`
	Description      string      `json:"description" gorm:"type:text;not null;default:''"`
	FullText         string      `json:"full_text" gorm:"type:text;not null;default:''"`
	StartDate        time.Time   `json:"start_date" gorm:"not null;index:idx_event_start"`
	EndDate          *time.Time  `json:"end_date,omitempty"`
	Address          *string     `json:"address,omitempty" gorm:"type:text;index:idx_event_address"`
	OriginalLocation *string     `json:"original_location,omitempty" gorm:"type:text"`
	GooglePlaceID    *string     `json:"google_place_id,omitempty" gorm:"type:text"`
	LocationName     *string     `json:"location_name,omitempty" gorm:"type:text"`
	Categories       []Category  `json:"categories" gorm:"serializer:json;type:text"`
	URL              *string     `json:"url,omitempty" gorm:"type:text"`
	Confidence       float64     `json:"confidence"`
	AgeRestrictions  *string     `json:"age_restrictions,omitempty" gorm:"type:text"`
	Price            *float64    `json:"price,omitempty"`
	Source           EventSource `json:"source" gorm:"type:varchar(32);not null;index:idx_event_source_external"`
	ExternalID       *string     `json:"external_id,omitempty" gorm:"type:text;index:idx_event_source_external"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (Event) TableName() string { return "events" }
