package lookup

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/cache"
)

// TTLs controls how long each cache kind stays fresh.
type TTLs struct {
	Carriers time.Duration
	Pricing  time.Duration
	Isp      time.Duration
	Voice    time.Duration
}

// DefaultTTLs returns the built-in cache lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Carriers: 24 * time.Hour,
		Pricing:  7 * 24 * time.Hour,
		Isp:      6 * time.Hour,
		Voice:    30 * 24 * time.Hour,
	}
}

// Service is the business logic behind the gateway: device compatibility
// checks, carrier/pricing/ISP lookups, and voice synthesis. Every expensive
// external call goes through the shared cache-aside engine.
type Service struct {
	gateway  *cache.Gateway
	carriers CarrierDirectory
	pricing  PricingSource
	isp      IspDirectory
	voice    VoiceSynthesizer
	ttls     TTLs
	logger   *slog.Logger
}

func NewService(gw *cache.Gateway, carriers CarrierDirectory, pricing PricingSource, isp IspDirectory, voice VoiceSynthesizer, ttls TTLs, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gw,
		carriers: carriers,
		pricing:  pricing,
		isp:      isp,
		voice:    voice,
		ttls:     ttls,
		logger:   logger,
	}
}

// Carriers returns the carrier directory for a location, cached.
func (s *Service) Carriers(ctx context.Context, location string) ([]Carrier, bool, error) {
	key := cache.Key("carriers", location)
	loc := cache.Normalize(location)
	return cache.GetOrCompute(ctx, s.gateway, key, s.ttls.Carriers, func(ctx context.Context) ([]Carrier, error) {
		return s.carriers.LookupCarriers(ctx, loc)
	})
}

// CheckCompatibility validates the device identifier, resolves the carrier
// directory for the location, and annotates each carrier with a
// compatibility verdict. When the directory is unreachable the static
// fallback table answers instead; fallback results are never cached.
func (s *Service) CheckCompatibility(ctx context.Context, imei, location string) (*CompatibilityResult, error) {
	if err := ValidateIMEI(imei); err != nil {
		return nil, err
	}

	source := SourceDirectory
	carriers, cached, err := s.Carriers(ctx, location)
	if err != nil {
		s.logger.Warn("carrier directory unavailable, using fallback",
			"location", location, "error", err)
		carriers = FallbackCarriers(cache.Normalize(location))
		source = SourceFallback
		cached = false
	}

	result := &CompatibilityResult{
		DeviceID: imei,
		Location: cache.Normalize(location),
		Carriers: make([]CarrierSupport, len(carriers)),
		Source:   source,
		Cached:   cached,
	}
	for i, c := range carriers {
		result.Carriers[i] = supportFor(imei, c)
	}
	return result, nil
}

// supportFor computes the compatibility verdict for one carrier. Test-range
// IMEIs (TAC 00xxxxxx) are never reported compatible.
func supportFor(imei string, c Carrier) CarrierSupport {
	sup := CarrierSupport{Carrier: c}

	if strings.HasPrefix(imei, "00") {
		sup.Notes = "test-range device identifier"
		return sup
	}

	for _, tech := range c.Technologies {
		if tech == "LTE" || tech == "5G NR" {
			sup.Supported = true
			break
		}
	}
	if !sup.Supported {
		sup.Notes = "no LTE or 5G NR coverage advertised"
	}
	return sup
}

// Pricing returns plan pricing for a location, cached.
func (s *Service) Pricing(ctx context.Context, location string) ([]PricingPlan, bool, error) {
	key := cache.Key("pricing", location)
	loc := cache.Normalize(location)
	return cache.GetOrCompute(ctx, s.gateway, key, s.ttls.Pricing, func(ctx context.Context) ([]PricingPlan, error) {
		return s.pricing.LookupPricing(ctx, loc)
	})
}

// Isp returns ISP/geolocation data for an address, cached.
func (s *Service) Isp(ctx context.Context, ip string) (*IspInfo, bool, error) {
	key := cache.Key("isp", ip)
	return cache.GetOrCompute(ctx, s.gateway, key, s.ttls.Isp, func(ctx context.Context) (*IspInfo, error) {
		return s.isp.FetchIsp(ctx, strings.TrimSpace(ip))
	})
}

// Voice returns synthesized audio for a text/voice pair, cached. Audio is
// expensive to synthesize and fully deterministic per input, so it gets the
// longest TTL.
func (s *Service) Voice(ctx context.Context, text, voice string) (*VoiceClip, bool, error) {
	key := cache.Key("voice", voice, text)
	return cache.GetOrCompute(ctx, s.gateway, key, s.ttls.Voice, func(ctx context.Context) (*VoiceClip, error) {
		audio, err := s.voice.Synthesize(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		return &VoiceClip{
			Voice:       voice,
			Audio:       audio,
			ContentType: "audio/mpeg",
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
}
