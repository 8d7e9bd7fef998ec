package lookup

import "time"

// Carrier is one mobile network operator in a carrier directory.
type Carrier struct {
	Name         string   `json:"name"`
	Country      string   `json:"country"`
	Bands        []string `json:"bands"`
	Technologies []string `json:"technologies"` // e.g. LTE, 5G NR, UMTS
}

// CarrierSupport is a carrier annotated with a compatibility verdict for a
// specific device.
type CarrierSupport struct {
	Carrier
	Supported bool   `json:"supported"`
	Notes     string `json:"notes,omitempty"`
}

// CompatibilityResult is the response of a device compatibility check.
type CompatibilityResult struct {
	DeviceID string           `json:"device_id"`
	Location string           `json:"location"`
	Carriers []CarrierSupport `json:"carriers"`
	Source   string           `json:"source"` // directory or fallback
	Cached   bool             `json:"cached"`
}

// PricingPlan is one plan in a pricing lookup.
type PricingPlan struct {
	Carrier   string  `json:"carrier"`
	Name      string  `json:"name"`
	Currency  string  `json:"currency"`
	Monthly   float64 `json:"monthly"`
	DataGB    float64 `json:"data_gb"`
	Unlimited bool    `json:"unlimited"`
}

// IspInfo is the result of an IP geolocation/ISP lookup.
type IspInfo struct {
	IP      string `json:"ip"`
	ISP     string `json:"isp"`
	ASN     string `json:"asn,omitempty"`
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// VoiceClip is synthesized audio for a text snippet. Audio is MP3 bytes;
// JSON encoding renders it base64.
type VoiceClip struct {
	Voice       string    `json:"voice"`
	Audio       []byte    `json:"audio"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Result sources.
const (
	SourceDirectory = "directory"
	SourceFallback  = "fallback"
)
