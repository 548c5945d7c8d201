package fetch

import (
	"cmp"
	"slices"
	"time"
)

// NorthWestShelf is the North-West European shelf box used by all presets.
var NorthWestShelf = BBox{MinLon: -8, MaxLon: 2, MinLat: 49, MaxLat: 60}

// Preset is a named product subset.
type Preset struct {
	Key         string
	Description string
	Request     Request
}

func at(y int, m time.Month, d, hh, mm, ss int) *time.Time {
	t := time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
	return &t
}

var catalog = []Preset{
	{
		Key:         "chl",
		Description: "Chlorophyll, Atlantic ocean colour L3 OLCI 300m daily",
		Request: Request{
			DatasetID:       "cmems_obs-oc_atl_bgc-plankton_my_l3-olci-300m_P1D",
			Variables:       []string{"CHL"},
			BBox:            NorthWestShelf,
			Start:           at(2017, time.January, 1, 0, 0, 0),
			End:             at(2024, time.December, 31, 23, 59, 59),
			OutputFilename:  "plank2017-2024.nc",
			OutputDirectory: "copernicus-data",
		},
	},
	{
		Key:         "depth",
		Description: "Sea floor depth, global physics static 1/12 degree",
		Request: Request{
			DatasetID:      "cmems_mod_glo_phy_my_0.083deg_static",
			Variables:      []string{"deptho"},
			BBox:           NorthWestShelf,
			OutputFilename: "depth_data.nc",
		},
	},
	{
		Key:         "sst",
		Description: "Adjusted sea surface temperature, Atlantic L3S daily",
		Request: Request{
			DatasetID:      "cmems_obs-sst_atl_phy_nrt_l3s_P1D-m",
			Variables:      []string{"adjusted_sea_surface_temperature"},
			BBox:           NorthWestShelf,
			Start:          at(2010, time.January, 1, 0, 0, 0),
			End:            at(2024, time.December, 31, 23, 59, 59),
			OutputFilename: "sst_2010_2024.nc",
		},
	},
	{
		Key:         "velocity",
		Description: "Surface current velocity components, North-West shelf hourly",
		Request: Request{
			DatasetID:      "cmems_mod_nws_phy-uv_my_7km-2D_PT1H-i",
			Variables:      []string{"vo", "uo"},
			BBox:           NorthWestShelf,
			Start:          at(2024, time.January, 1, 0, 0, 0),
			End:            at(2024, time.December, 31, 23, 59, 59),
			OutputFilename: "vel-hrly_2024.nc",
		},
	},
	{
		Key:         "spm",
		Description: "Suspended particulate matter, Atlantic L3 multi-sensor 1km daily",
		Request: Request{
			DatasetID:      "cmems_obs-oc_atl_bgc-transp_my_l3-multi-1km_P1D",
			Variables:      []string{"SPM"},
			BBox:           NorthWestShelf,
			Start:          at(2010, time.January, 1, 0, 0, 0),
			End:            at(2024, time.December, 31, 23, 59, 59),
			OutputFilename: "spm_raw_data.nc",
		},
	},
	{
		Key:         "zsd",
		Description: "Secchi depth (water clarity), Atlantic L3 multi-sensor 1km daily",
		Request: Request{
			DatasetID:      "cmems_obs-oc_atl_bgc-transp_my_l3-multi-1km_P1D",
			Variables:      []string{"ZSD"},
			BBox:           NorthWestShelf,
			Start:          at(2010, time.January, 1, 0, 0, 0),
			End:            at(2024, time.December, 31, 23, 59, 59),
			OutputFilename: "zsd_2010_2024.nc",
		},
	},
}

// Catalog returns the known presets ordered by key.
func Catalog() []Preset {
	out := slices.Clone(catalog)
	slices.SortFunc(out, func(a, b Preset) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// Lookup returns the preset called key.
func Lookup(key string) (Preset, bool) {
	i := slices.IndexFunc(catalog, func(p Preset) bool { return p.Key == key })
	if i < 0 {
		return Preset{}, false
	}
	p := catalog[i]
	p.Request.Variables = slices.Clone(p.Request.Variables)
	return p, true
}
