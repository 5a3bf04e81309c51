package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // LOCAL_TIMEZONE must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/goccy/go-yaml"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Default feed endpoints.
const (
	DefaultMODISURL     = "https://services9.arcgis.com/RHVPKKiFTONKtxq3/ArcGIS/rest/services/MODIS_Thermal_v1/FeatureServer/0/query"
	DefaultVIIRSURL     = "https://services9.arcgis.com/RHVPKKiFTONKtxq3/arcgis/rest/services/Satellite_VIIRS_Thermal_Hotspots_and_Fire_Activity/FeatureServer/0/query"
	DefaultIncidentsURL = "https://api-dev.fogos.pt/new/fires"
	DefaultRiskURLs     = "today=https://api-dev.fogos.pt/v1/risk-today,tomorrow=https://api-dev.fogos.pt/v1/risk-tomorrow,after=https://api-dev.fogos.pt/v1/risk-after"
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
)

// Place providers.
const (
	PlaceProviderNone     = "none"
	PlaceProviderMapbox   = "mapbox"
	PlaceProviderOverpass = "overpass"
)

// RiskHorizon is one forecast endpoint of the risk feed.
type RiskHorizon struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Topics names the Kafka topic of each result kind.
type Topics struct {
	Hotspots  string
	Incidents string
	Risk      string
	Status    string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Schedule        string

	// Inputs.
	BoundarySource   string
	AdminUnitsSource string
	HotspotSources   []domain.Source
	HotspotURLs      map[domain.Source]string
	DayRange         int
	IncidentsURL     string
	RiskHorizons     []RiskHorizon
	FeedsFile        string

	// Retrying fetch client.
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchTimeout     time.Duration
	FetchRateLimit   float64 // requests per second, 0 = unlimited

	// Burnt-area reconstruction.
	ClusterEpsilonKm float64
	ClusterMinPoints int
	BufferRadiusKm   float64

	LocalTimezone *time.Location
	LabelLanguage string

	// Place enrichment.
	PlaceProvider      string
	MapboxToken        string
	MapboxTimeout      time.Duration
	OverpassURL        string
	PlaceMaxDistanceKm float64
	PlaceCacheSize     int

	// Result transport.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopics  Topics
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		Schedule:         sharedcfg.EnvOrDefault("SCHEDULE", "*/15 * * * *"),
		BoundarySource:   sharedcfg.EnvOrDefault("BOUNDARY_SOURCE", "data/boundaries.geojson"),
		AdminUnitsSource: sharedcfg.EnvOrDefault("ADMIN_UNITS_SOURCE", "data/admin_units.geojson"),
		HotspotURLs: map[domain.Source]string{
			domain.SourceMODIS: sharedcfg.EnvOrDefault("MODIS_URL", DefaultMODISURL),
			domain.SourceVIIRS: sharedcfg.EnvOrDefault("VIIRS_URL", DefaultVIIRSURL),
		},
		IncidentsURL:  sharedcfg.EnvOrDefault("INCIDENTS_URL", DefaultIncidentsURL),
		FeedsFile:     os.Getenv("FEEDS_FILE"),
		LabelLanguage: sharedcfg.EnvOrDefault("LABEL_LANGUAGE", "en"),
		PlaceProvider: strings.ToLower(sharedcfg.EnvOrDefault("PLACE_PROVIDER", defaultPlaceProvider())),
		MapboxToken:   os.Getenv("MAPBOX_TOKEN"),
		OverpassURL:   sharedcfg.EnvOrDefault("OVERPASS_URL", DefaultOverpassURL),
		KafkaTopics: Topics{
			Hotspots:  sharedcfg.EnvOrDefault("KAFKA_TOPIC_HOTSPOTS", "wildfire-hotspots"),
			Incidents: sharedcfg.EnvOrDefault("KAFKA_TOPIC_INCIDENTS", "wildfire-incidents"),
			Risk:      sharedcfg.EnvOrDefault("KAFKA_TOPIC_RISK", "wildfire-risk"),
			Status:    sharedcfg.EnvOrDefault("KAFKA_TOPIC_STATUS", "wildfire-status"),
		},
	}

	if cfg.HotspotSources, err = parseSources(sharedcfg.EnvOrDefault("HOTSPOT_SOURCES", "modis,viirs")); err != nil {
		return nil, err
	}
	if cfg.RiskHorizons, err = parseHorizons(sharedcfg.EnvOrDefault("RISK_URLS", DefaultRiskURLs)); err != nil {
		return nil, err
	}
	if cfg.DayRange, err = parseInt("DAY_RANGE", 1, 1); err != nil {
		return nil, err
	}
	if cfg.FetchMaxAttempts, err = parseInt("FETCH_MAX_ATTEMPTS", 3, 1); err != nil {
		return nil, err
	}
	if cfg.FetchBaseDelay, err = parseDuration("FETCH_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchRateLimit, err = parseFloat("FETCH_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.ClusterEpsilonKm, err = parseFloat("CLUSTER_EPSILON_KM", 15); err != nil {
		return nil, err
	}
	if cfg.ClusterMinPoints, err = parseInt("CLUSTER_MIN_POINTS", 3, 1); err != nil {
		return nil, err
	}
	if cfg.BufferRadiusKm, err = parseFloat("BUFFER_RADIUS_KM", 1); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parseDuration("MAPBOX_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PlaceMaxDistanceKm, err = parseFloat("PLACE_MAX_DISTANCE_KM", 200); err != nil {
		return nil, err
	}
	if cfg.PlaceCacheSize, err = parseInt("PLACE_CACHE_SIZE", 1000, 1); err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("LOCAL_TIMEZONE", "Europe/Lisbon")
	if cfg.LocalTimezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid LOCAL_TIMEZONE %q: %w", tz, err)
	}

	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(b)
	}
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if cfg.FeedsFile != "" {
		if err := cfg.applyFeedsFile(cfg.FeedsFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid SCHEDULE %q: %w", c.Schedule, err)
	}
	if c.BoundarySource == "" {
		return errors.New("BOUNDARY_SOURCE is required")
	}
	for _, src := range c.HotspotSources {
		if c.HotspotURLs[src] == "" {
			return fmt.Errorf("no URL configured for hotspot source %s", src)
		}
	}
	switch c.PlaceProvider {
	case PlaceProviderNone, PlaceProviderOverpass:
	case PlaceProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("PLACE_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid PLACE_PROVIDER %q", c.PlaceProvider)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	return nil
}

// defaultPlaceProvider enables Mapbox when a token is present.
func defaultPlaceProvider() string {
	if os.Getenv("MAPBOX_TOKEN") != "" {
		return PlaceProviderMapbox
	}
	return PlaceProviderNone
}

// feedsFile is the optional YAML override for feed endpoints.
type feedsFile struct {
	Hotspots  map[string]string `yaml:"hotspots"`
	Incidents string            `yaml:"incidents"`
	Risk      []RiskHorizon     `yaml:"risk"`
}

func (c *Config) applyFeedsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read FEEDS_FILE: %w", err)
	}
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse FEEDS_FILE %s: %w", path, err)
	}
	for name, u := range f.Hotspots {
		src, err := domain.ParseSource(name)
		if err != nil {
			return fmt.Errorf("FEEDS_FILE: %w", err)
		}
		c.HotspotURLs[src] = u
	}
	if f.Incidents != "" {
		c.IncidentsURL = f.Incidents
	}
	if len(f.Risk) > 0 {
		for _, h := range f.Risk {
			if h.Name == "" || h.URL == "" {
				return errors.New("FEEDS_FILE: risk horizons need a name and a url")
			}
		}
		c.RiskHorizons = f.Risk
	}
	return nil
}

func parseSources(s string) ([]domain.Source, error) {
	var out []domain.Source
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		src, err := domain.ParseSource(part)
		if err != nil {
			return nil, fmt.Errorf("invalid HOTSPOT_SOURCES: %w", err)
		}
		if !containsSource(out, src) {
			out = append(out, src)
		}
	}
	return out, nil
}

func containsSource(list []domain.Source, src domain.Source) bool {
	for _, s := range list {
		if s == src {
			return true
		}
	}
	return false
}

// parseHorizons reads "name=url" pairs separated by commas.
func parseHorizons(s string) ([]RiskHorizon, error) {
	var out []RiskHorizon
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, u, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("invalid RISK_URLS entry %q: want name=url", part)
		}
		out = append(out, RiskHorizon{Name: strings.TrimSpace(name), URL: strings.TrimSpace(u)})
	}
	return out, nil
}

func parseInt(name string, def, minimum int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

func parseFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return f, nil
}

func parseDuration(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}
