package executor

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

const (
	earthRadiusMeters = 6371000.0
	travelStep        = time.Second
)

type geoPoint struct {
	lat, lon float64
}

func parseGeoPoint(s string) (geoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geoPoint{}, core.ErrInvalidCommand.WithMessagef("invalid travel point %q", s)
	}
	lat, err := parseCoordinate(parts[0])
	if err != nil {
		return geoPoint{}, err
	}
	lon, err := parseCoordinate(parts[1])
	if err != nil {
		return geoPoint{}, err
	}
	return geoPoint{lat: lat, lon: lon}, nil
}

// haversine returns the great-circle distance in meters.
func haversine(a, b geoPoint) float64 {
	rad := math.Pi / 180
	dLat := (b.lat - a.lat) * rad
	dLon := (b.lon - a.lon) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.lat*rad)*math.Cos(b.lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// travel moves the device location along the path, one location update per
// second of travel at the given speed.
func (o *Orchestra) travel(ctx context.Context, c *flow.TravelCommand) (bool, error) {
	if len(c.Points) == 0 {
		return false, core.ErrInvalidCommand.WithMessage("travel needs at least one point")
	}
	points := make([]geoPoint, len(c.Points))
	for i, s := range c.Points {
		p, err := parseGeoPoint(s)
		if err != nil {
			return false, err
		}
		points[i] = p
	}
	speed := c.Speed
	if speed <= 0 {
		speed = flow.DefaultTravelSpeedMps
	}

	if err := o.driver.SetLocation(ctx, points[0].lat, points[0].lon); err != nil {
		return false, err
	}
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		seconds := haversine(from, to) / speed
		steps := int(math.Max(1, math.Ceil(seconds)))
		stepDelay := time.Duration(seconds / float64(steps) * float64(time.Second))

		for s := 1; s <= steps; s++ {
			if err := sleep(ctx, stepDelay); err != nil {
				return true, err
			}
			f := float64(s) / float64(steps)
			lat := from.lat + (to.lat-from.lat)*f
			lon := from.lon + (to.lon-from.lon)*f
			if err := o.driver.SetLocation(ctx, lat, lon); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}
