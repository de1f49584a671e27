package catalog

import "github.com/luxfi/geofence/zone"

// Fallback returns the built-in catalog: the Pinhal Novo 2 toll on the A12,
// with its two geofences. Each call returns a fresh copy.
func Fallback() []zone.Zone {
	return []zone.Zone{{
		Code:      "1212",
		Name:      "Pinhal Novo 2",
		Highway:   "A12",
		Type:      zone.Closed,
		Reference: zone.Point{Lat: 38.65451852, Lon: -8.897964775},
		Geofences: []zone.Geofence{
			{Points: []zone.Point{
				{Lat: 38.656802634221954, Lon: -8.89406437912976},
				{Lat: 38.65691740970802, Lon: -8.894013417158478},
				{Lat: 38.656892826425825, Lon: -8.893697380457288},
				{Lat: 38.65683269761516, Lon: -8.893382684860626},
				{Lat: 38.656654748051714, Lon: -8.892980353508392},
				{Lat: 38.6565523326305, Lon: -8.893029974375168},
				{Lat: 38.65671265854521, Lon: -8.893387817297363},
				{Lat: 38.656779677079534, Lon: -8.893713473711378},
			}},
			{Points: []zone.Point{
				{Lat: 38.65583349226638, Lon: -8.897226703558358},
				{Lat: 38.65595099723018, Lon: -8.897295099888238},
				{Lat: 38.656222034711185, Lon: -8.896606700096507},
				{Lat: 38.65632040137139, Lon: -8.89634049085178},
				{Lat: 38.65635063854005, Lon: -8.89621643868484},
				{Lat: 38.65627633512204, Lon: -8.896184252176662},
			}},
		},
	}}
}
