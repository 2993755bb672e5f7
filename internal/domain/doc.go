// Package domain models the per-forest wildfire datasets and the inputs and
// outputs of the wildfire-risk classifiers.
//
// # Data Source
//
// Each US National Forest unit (Coconino, Tongass, White Mountain, ...) has one
// preprocessed daily table built offline from three sources: the 1992-2015 US
// wildfire records (FPA FOD), NOAA GHCN daily weather aggregates, and the NOAA
// SWDI lightning strike inventory. Tables are stored as
// "<forest>_preprocessed.csv" in the data directory.
//
// # Table Conventions
//
// Header row first, one row per day. The "target" column is 1 when at least one
// fire was discovered in the forest that day, 0 otherwise. Every other column is
// a numeric model feature; column order in the file is the order the trained
// classifier expects.
//
// Typical columns:
//
//	year            calendar year of the record
//	day_of_year     ordinal day, 1-366 (also "doy" or "DISCOVERY_DOY")
//	TMAX_mean       mean daily max temperature across forest stations, °C
//	TMIN_mean       mean daily min temperature, °C
//	PRCP_mean       mean daily precipitation, mm
//	lightnings      1 when lightning strikes were recorded that day
//	fires_7d        fires discovered in the forest over the previous 7 days
//
// # Feature Kinds
//
// Each column is classified once per dataset into a [FeatureKind] that decides
// which form control collects its value (see [DescribeFeatures]):
//
//	year                          -> KindYear       (3-year forward window)
//	day_of_year, doy, DISCOVERY_DOY -> KindDayOfYear (date picker)
//	TMAX*, TMIN*, TAVG*, PRCP*    -> KindContinuous (slider on [min, max])
//	*fire*                        -> KindCount      (integer slider on [min, max])
//	values all in {0, 1}          -> KindBinary     (two-way choice)
//	anything else                 -> KindNumeric    (free numeric input)
//
// Name rules are checked before the value rule, so a "fires_7d" column that
// happens to hold only zeros and ones is still a count.
//
// # Model Variants
//
// Every forest ships two classifiers trained on the same columns: "base" and
// "smote", the latter trained on a SMOTE-rebalanced sample. A record built for
// one forest is valid for both.
package domain
