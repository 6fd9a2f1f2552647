package dto

type RouteStopRequest struct {
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	ServiceTimeSeconds int     `json:"service_time_seconds"`
}

type RouteMetricsRequest struct {
	Origin      LocationRequest    `json:"origin"`
	Destination RouteStopRequest   `json:"destination"`
	Stops       []RouteStopRequest `json:"stops"`
}

type RouteMetricsResponse struct {
	DurationSeconds int      `json:"duration_seconds"`
	LengthMeters    int      `json:"length_meters"`
	Polylines       []string `json:"polylines"`
}
