package reproject

import (
	"fmt"
	"math"

	"topofetch/internal/errors"
)

// Zone is a WGS84 UTM zone
type Zone struct {
	Number int
	North  bool
}

// ZoneFor returns the zone containing (lat, lon). Longitudes at or beyond the
// antimeridian are clamped into zones 1..60.
func ZoneFor(lat, lon float64) Zone {
	n := int(math.Floor((lon+180)/6)) + 1
	if n < 1 {
		n = 1
	}
	if n > 60 {
		n = 60
	}
	return Zone{Number: n, North: lat >= 0}
}

// EPSG is 326zz for the northern hemisphere and 327zz for the southern
func (z Zone) EPSG() int {
	if z.North {
		return 32600 + z.Number
	}
	return 32700 + z.Number
}

// Proj4 is the proj4 definition of the zone
func (z Zone) Proj4() string {
	s := fmt.Sprintf("+proj=utm +zone=%d", z.Number)
	if !z.North {
		s += " +south"
	}
	return s + " +datum=WGS84 +units=m +no_defs"
}

// Hemisphere returns "North" or "South"
func (z Zone) Hemisphere() string {
	if z.North {
		return "North"
	}
	return "South"
}

func (z Zone) String() string {
	if z.North {
		return fmt.Sprintf("%dN", z.Number)
	}
	return fmt.Sprintf("%dS", z.Number)
}

// ZoneFromEPSG inverts EPSG for the WGS84 UTM codes
func ZoneFromEPSG(code int) (Zone, error) {
	switch {
	case code > 32600 && code <= 32660:
		return Zone{Number: code - 32600, North: true}, nil
	case code > 32700 && code <= 32760:
		return Zone{Number: code - 32700, North: false}, nil
	}
	return Zone{}, errors.Configuration("EPSG:%d is not a WGS84 UTM zone", code)
}

// WGS84Proj4 is the geographic reference system of all bounding boxes
const WGS84Proj4 = "+proj=longlat +datum=WGS84 +no_defs"
