package models

import "time"

// Detection is one face box in original-image pixel coordinates. Coordinates
// satisfy 0 <= XMin < XMax <= image width and 0 <= YMin < YMax <= image
// height.
type Detection struct {
	XMin       float32 `json:"x_min"`
	YMin       float32 `json:"y_min"`
	XMax       float32 `json:"x_max"`
	YMax       float32 `json:"y_max"`
	Confidence float32 `json:"confidence"`
}

// ProcessingTimings records per-stage latency for one request.
type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}
