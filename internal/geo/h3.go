package geo

import (
	"github.com/uber/h3-go/v4"
)

// AreaResolution groups courts into neighbourhood-sized cells
// (~1.2 km edge, ~5.16 km²). See https://h3geo.org/docs/core-library/restable
const AreaResolution = 7

// AreaCell returns the H3 cell containing c, as a hex string. Invalid input
// yields an empty string.
func AreaCell(c Coordinates) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), AreaResolution)
	if err != nil {
		return ""
	}
	return cell.String()
}

// AreaCenter returns the centre of a cell produced by AreaCell.
func AreaCenter(cell string) *Coordinates {
	latLng, err := h3.CellFromString(cell).LatLng()
	if err != nil {
		return nil
	}
	return &Coordinates{Latitude: latLng.Lat, Longitude: latLng.Lng}
}
