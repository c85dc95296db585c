package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var office = Point{Latitude: -6.200000, Longitude: 106.816666} // Jakarta

func TestDistanceMeters(t *testing.T) {
	t.Run("identical points have zero distance", func(t *testing.T) {
		assert.Zero(t, DistanceMeters(office, office))
	})

	t.Run("symmetry", func(t *testing.T) {
		a := Point{Latitude: 52.5200, Longitude: 13.4050}
		b := Point{Latitude: 48.8566, Longitude: 2.3522}
		assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-9)
	})

	t.Run("known distance Berlin to Paris", func(t *testing.T) {
		a := Point{Latitude: 52.5200, Longitude: 13.4050}
		b := Point{Latitude: 48.8566, Longitude: 2.3522}
		// ~878 km great-circle.
		assert.InDelta(t, 878000, DistanceMeters(a, b), 5000)
	})
}

func TestIsWithin(t *testing.T) {
	t.Run("center is inside any non-negative radius", func(t *testing.T) {
		assert.True(t, IsWithin(office, office, 0))
		assert.True(t, IsWithin(office, office, 100))
	})

	t.Run("150m away fails a 100m fence, 50m passes", func(t *testing.T) {
		// Offsets chosen along a meridian: 1 degree latitude ~ 111.32 km.
		at150m := Point{Latitude: office.Latitude + 150/111320.0, Longitude: office.Longitude}
		at50m := Point{Latitude: office.Latitude + 50/111320.0, Longitude: office.Longitude}

		assert.False(t, IsWithin(at150m, office, 100))
		assert.True(t, IsWithin(at50m, office, 100))
	})
}

func TestHasSufficientAccuracy(t *testing.T) {
	t.Run("unknown accuracy is rejected", func(t *testing.T) {
		assert.False(t, HasSufficientAccuracy(nil, 50))
	})

	t.Run("accuracy within requirement passes", func(t *testing.T) {
		acc := 30.0
		assert.True(t, HasSufficientAccuracy(&acc, 50))
	})

	t.Run("boundary accuracy passes", func(t *testing.T) {
		acc := 50.0
		assert.True(t, HasSufficientAccuracy(&acc, 50))
	})

	t.Run("worse than required fails", func(t *testing.T) {
		acc := 80.0
		assert.False(t, HasSufficientAccuracy(&acc, 50))
	})
}
