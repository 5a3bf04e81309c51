// Package domain models satellite thermal-anomaly detections, active fire
// incidents and wildfire-risk forecasts.
//
// # Hotspot feeds
//
// Detections come from two ArcGIS feature services that publish the NASA
// FIRMS active-fire products:
//
//	MODIS (Aqua/Terra, 1 km pixels)
//	  BRIGHTNESS  brightness temperature, Kelvin
//	  ACQ_DATE    acquisition time, epoch milliseconds
//	  SATELLITE   "A" (Aqua) or "T" (Terra)
//	  CONFIDENCE  numeric 0-100
//	  DAYNIGHT    "D" or "N"
//	  FRP         fire radiative power, MW
//
//	VIIRS (Suomi NPP, NOAA-20/21, 375 m pixels)
//	  bright_ti4  I-4 channel brightness temperature, Kelvin
//	  acq_time    acquisition time, epoch milliseconds
//	  satellite   "N", "1", "2" or the long names
//	  confidence  "low", "nominal" or "high" ("l", "n", "h" in some mirrors)
//	  daynight    "D" or "N"
//	  frp         fire radiative power, MW
//
// Each feed's attribute names are resolved once by [Normalize] through a
// per-source [Schema]: the capitalized source-specific name is tried first,
// then the lowercase generic one. Numeric confidence values are kept raw.
//
// # Incidents
//
// The incident feed reports resources committed to each active fire. The
// importance of an incident weights personnel, ground and aerial units by
// the local time of day (aerial means are grounded at night):
//
//	night (hour >= 20 or hour <= 9): 1.5*personnel + 4.5*ground
//	day:                             1.0*personnel + 2.5*ground + 10*aerial
//
// [SizeFactor] normalizes importance against the run's [ImportanceStats].
// Status codes 11 (conclusion) and 12 (false alarm) always yield 0.6.
//
// # Risk
//
// The risk feed assigns a class 1-5 to each administrative unit code
// (DICO). Classes map to a fixed color ramp by [RiskColor]; anything else
// renders white.
package domain
