package presence

// TelemetryEvent is published once per poll cycle as {"sensorTouched": bool}.
type TelemetryEvent struct {
	// Occupied is distance <= occupied threshold for the latest good sample.
	Occupied bool `json:"sensorTouched"`
}

// Alert is the notification payload of one episode.
type Alert struct {
	// Label is the recognized name or Unknown.
	Label string
	// Known is false for unknown visitors.
	Known bool
	// Image is the captured JPEG.
	Image []byte
	// ImageName is the attachment file name.
	ImageName string
}

// NewAlert builds the alert for result with the captured image attached.
func NewAlert(result DetectionResult, image []byte, imageName string) Alert {
	return Alert{
		Label:     result.Label(),
		Known:     result.Known(),
		Image:     image,
		ImageName: imageName,
	}
}
