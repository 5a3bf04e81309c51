package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for display labels.
const (
	keyConfidenceLow     = "confidence.low"
	keyConfidenceNominal = "confidence.nominal"
	keyConfidenceHigh    = "confidence.high"
	keyDay               = "daynight.day"
	keyNight             = "daynight.night"
	keyRemoteArea        = "place.remote"
	keyInOcean           = "place.ocean"
	keyRiskLayer         = "risk.layer"
)

var supportedLanguages = []language.Tag{language.English, language.Portuguese}

var labelCatalog = buildLabelCatalog()

func buildLabelCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	entries := map[language.Tag]map[string]string{
		language.English: {
			keyConfidenceLow:     "Low",
			keyConfidenceNominal: "Nominal",
			keyConfidenceHigh:    "High",
			keyDay:               "Day",
			keyNight:             "Night",
			keyRemoteArea:        "Remote Area",
			keyInOcean:           "In Ocean",
			keyRiskLayer:         "Risk %s",
		},
		language.Portuguese: {
			keyConfidenceLow:     "Baixa",
			keyConfidenceNominal: "Normal",
			keyConfidenceHigh:    "Alta",
			keyDay:               "Dia",
			keyNight:             "Noite",
			keyRemoteArea:        "Zona Remota",
			keyInOcean:           "No Oceano",
			keyRiskLayer:         "Risco %s",
		},
	}
	for tag, msgs := range entries {
		for key, msg := range msgs {
			// SetString only fails on malformed messages; these are static.
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

// Labeler renders display labels in one language.
type Labeler struct {
	tag     language.Tag
	printer *message.Printer
}

var defaultLabeler = NewLabeler("en")

// NewLabeler returns a Labeler for the closest supported language to lang
// (a BCP 47 tag such as "pt" or "pt-PT"). Unknown languages fall back to English.
func NewLabeler(lang string) *Labeler {
	matcher := language.NewMatcher(supportedLanguages)
	_, idx, _ := matcher.Match(language.Make(lang))
	tag := supportedLanguages[idx]
	return &Labeler{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(labelCatalog)),
	}
}

func (l *Labeler) p() *message.Printer {
	if l == nil {
		return defaultLabeler.printer
	}
	return l.printer
}

// Language returns the matched language tag.
func (l *Labeler) Language() language.Tag {
	if l == nil {
		return defaultLabeler.tag
	}
	return l.tag
}

// Confidence labels a categorical confidence level.
func (l *Labeler) Confidence(level ConfidenceLevel) string {
	switch level {
	case ConfidenceLow:
		return l.p().Sprintf(keyConfidenceLow)
	case ConfidenceNominal:
		return l.p().Sprintf(keyConfidenceNominal)
	case ConfidenceHigh:
		return l.p().Sprintf(keyConfidenceHigh)
	default:
		return string(level)
	}
}

// DayNight labels an acquisition pass. Unknown passes yield "".
func (l *Labeler) DayNight(dn DayNight) string {
	switch dn {
	case Day:
		return l.p().Sprintf(keyDay)
	case Night:
		return l.p().Sprintf(keyNight)
	default:
		return ""
	}
}

// RemoteArea is the place label for detections with no settlement nearby.
func (l *Labeler) RemoteArea() string {
	return l.p().Sprintf(keyRemoteArea)
}

// InOcean is the place label for detections outside every boundary.
func (l *Labeler) InOcean() string {
	return l.p().Sprintf(keyInOcean)
}

// RiskLayer names a risk layer after its forecast date.
func (l *Labeler) RiskLayer(date string) string {
	return l.p().Sprintf(keyRiskLayer, date)
}
