package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type RefreshRequest struct {
	Mode    string `query:"mode" json:"mode" default:"live" validate:"oneof=live demo"`
	Horizon int    `query:"horizon" json:"horizon" default:"6" validate:"gte=1,lte=90"`
}

type TopMoversRequest struct {
	Limit int `query:"limit" json:"limit" default:"5" validate:"gte=1,lte=5"`
}
