package model

import "time"

type Vehicle struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	GroupID      string    `json:"group_id" bson:"group_id" validate:"required,mongodb"`
	Name         string    `json:"name" bson:"name" validate:"required,max=255"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	LicensePlate string    `json:"license_plate" bson:"license_plate" validate:"required,max=20"`
	ModelYear    int       `json:"model_year,omitempty" bson:"model_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	CurbWeight   int       `json:"curb_weight,omitempty" bson:"curb_weight,omitempty" validate:"omitempty,min=0"`
	GrossWeight  int       `json:"gross_weight,omitempty" bson:"gross_weight,omitempty" validate:"omitempty,min=0"`
	Length       int       `json:"length,omitempty" bson:"length,omitempty" validate:"omitempty,min=0"`
	Width        int       `json:"width,omitempty" bson:"width,omitempty" validate:"omitempty,min=0"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// VehicleUpdate carries a partial vehicle edit.
type VehicleUpdate struct {
	Name         string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty"`
	LicensePlate string `json:"license_plate,omitempty" validate:"omitempty,max=20"`
	ModelYear    *int   `json:"model_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	CurbWeight   *int   `json:"curb_weight,omitempty" validate:"omitempty,min=0"`
	GrossWeight  *int   `json:"gross_weight,omitempty" validate:"omitempty,min=0"`
	Length       *int   `json:"length,omitempty" validate:"omitempty,min=0"`
	Width        *int   `json:"width,omitempty" validate:"omitempty,min=0"`
}
