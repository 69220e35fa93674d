package common

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Product identifiers understood by the pipeline:
//
//	MMM_TTTTT_YYYYMMDD_S_LLL  grid identifier (e.g. S2B_32TNS_20200101_0_L2A)
//	MMM_MSILLL_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<discriminator>[.SAFE]  product name
const (
	DateFormatCompact = "20060102"   // output rasters
	DateFormatDay     = "2006-01-02" // date keys, chip files
)

// GetSatelliteFromProductId returns the Sentinel-2 unit letter "A" or "B",
// or "X" when it cannot be derived from the identifier.
func GetSatelliteFromProductId(sourceID string) string {
	switch {
	case strings.HasPrefix(sourceID, "S2A"):
		return "A"
	case strings.HasPrefix(sourceID, "S2B"):
		return "B"
	}
	return "X"
}

// GetDateFromProductId returns the sensing day of the product
func GetDateFromProductId(sourceID string) (time.Time, error) {
	format, err := Info(sourceID)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(DateFormatCompact, format["DATE"])
}

// Info returns the named parts of a Sentinel-2 product identifier
func Info(sourceID string) (map[string]string, error) {
	sourceID = strings.TrimSuffix(sourceID, ".SAFE")
	tokens := strings.Split(sourceID, "_")
	switch {
	case len(tokens) >= 7 && strings.HasPrefix(tokens[1], "MSI"):
		if len(sourceID) < len("MMM_MSILLL_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx") {
			return nil, fmt.Errorf("invalid Sentinel2 product name: " + sourceID)
		}
		return map[string]string{
			"SCENE":           sourceID,
			"MISSION_ID":      sourceID[0:3],
			"MISSION_VERSION": sourceID[2:3],
			"PRODUCT_LEVEL":   sourceID[7:10],
			"DATE":            sourceID[11:19],
			"YEAR":            sourceID[11:15],
			"MONTH":           sourceID[15:17],
			"DAY":             sourceID[17:19],
			"TIME":            sourceID[20:26],
			"HOUR":            sourceID[20:22],
			"MINUTE":          sourceID[22:24],
			"SECOND":          sourceID[24:26],
			"PDGS":            sourceID[28:32],
			"ORBIT":           sourceID[34:37],
			"TILE":            sourceID[39:44],
			"UTM_ZONE":        sourceID[39:41],
			"LATITUDE_BAND":   sourceID[41:42],
			"GRID_SQUARE":     sourceID[42:44],
		}, nil
	case len(tokens) == 5:
		mission, tile, date := tokens[0], tokens[1], tokens[2]
		if len(mission) != 3 || len(tile) < 4 || len(date) != 8 {
			return nil, fmt.Errorf("invalid grid identifier: " + sourceID)
		}
		return map[string]string{
			"SCENE":           sourceID,
			"MISSION_ID":      mission,
			"MISSION_VERSION": mission[2:3],
			"TILE":            tile,
			"UTM_ZONE":        tile[:len(tile)-3],
			"LATITUDE_BAND":   tile[len(tile)-3 : len(tile)-2],
			"GRID_SQUARE":     tile[len(tile)-2:],
			"DATE":            date,
			"YEAR":            date[0:4],
			"MONTH":           date[4:6],
			"DAY":             date[6:8],
			"MONTH_COMPACT":   strings.TrimPrefix(date[4:6], "0"),
			"SEQUENCE":        tokens[3],
			"PRODUCT_LEVEL":   tokens[4],
		}, nil
	}
	return nil, fmt.Errorf("Info: unsupported identifier: " + sourceID)
}

// CanonicalId rewrites a product name to the grid identifier shape
// (S2B_MSIL2A_20200101T101221_N0213_R022_T32TNS_... -> S2B_32TNS_20200101_213_L2A),
// so that identifiers group the same way whatever the catalog that issued them.
// Grid identifiers pass through unchanged.
func CanonicalId(sourceID string) (string, error) {
	info, err := Info(sourceID)
	if err != nil {
		return "", fmt.Errorf("CanonicalId.%w", err)
	}
	if _, ok := info["SEQUENCE"]; ok {
		return info["SCENE"], nil
	}
	baseline, err := strconv.Atoi(info["PDGS"])
	if err != nil {
		baseline = 0
	}
	return fmt.Sprintf("%s_%s_%s_%d_%s", info["MISSION_ID"], info["TILE"], info["DATE"], baseline, info["PRODUCT_LEVEL"]), nil
}

// OutputFileName returns the raster file name of (indicator, date) for an AOI
func OutputFileName(indicator Indicator, date time.Time, aoiID string) string {
	return fmt.Sprintf("S2_%s_000_%s_%s.tif", date.Format(DateFormatCompact), aoiID, indicator)
}

// OutputRelPath returns the partitioned storage path of an indicator raster
func OutputRelPath(indicator Indicator, date time.Time, aoiID string) string {
	return path.Join("index="+indicator.String(), "aoi="+aoiID, OutputFileName(indicator, date, aoiID))
}

// ChipFileName returns the file name of a cached AOI chip
func ChipFileName(aoiID string, date time.Time) string {
	return fmt.Sprintf("%s_%s.tif", aoiID, date.Format(DateFormatDay))
}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), TILE (UTM_ZONE/LATITUDE_BAND/GRID_SQUARE), SEQUENCE
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
