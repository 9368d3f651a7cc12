package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"floodloop/internal/core"
	"floodloop/internal/types"
)

// FloodHistoryHandler serves the static table of notable historical flood
// events per city. Cities without curated entries fall back to a generic
// global-trend record set.
type FloodHistoryHandler struct {
	logger *slog.Logger
}

// NewFloodHistoryHandler creates a new FloodHistoryHandler.
func NewFloodHistoryHandler(logger *slog.Logger) *FloodHistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FloodHistoryHandler{logger: logger}
}

// RegisterRoutes mounts the flood history endpoint onto the mux.
func (h *FloodHistoryHandler) RegisterRoutes(r chi.Router) {
	r.With(core.DefaultTimeout()).Get("/flood-history", h.HandleGet)
}

// floodHistoryResponse is the payload for GET /v1/flood-history.
type floodHistoryResponse struct {
	City   string            `json:"city"`
	Events []types.FloodEvent `json:"events"`
	Count  int               `json:"count"`
}

// HandleGet handles GET /v1/flood-history?city=<name>.
func (h *FloodHistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"city query parameter is required",
			nil,
		))
		return
	}

	events := FloodEventsFor(city)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: floodHistoryResponse{
		City:   city,
		Events: events,
		Count:  len(events),
	}})
}

// FloodEventsFor looks up curated events for a city. Matching is
// case-insensitive and tolerates partial names ("Greater Mumbai" matches
// "mumbai"); unknown cities get the default bucket.
func FloodEventsFor(city string) []types.FloodEvent {
	key := strings.ToLower(strings.TrimSpace(city))
	if events, ok := historicalFloods[key]; ok {
		return events
	}
	for name, events := range historicalFloods {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return events
		}
	}
	return defaultFloodEvents
}

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

var defaultFloodEvents = []types.FloodEvent{
	{Year: 2022, Event: "Regional Flash Flood Events", Severity: types.RiskLevelMedium, Description: "Flash flood events have increasingly impacted urban areas globally due to climate change. Check local disaster management reports for specific city data.", Source: "UNDRR"},
	{Year: 2021, Event: "Global Urban Flood Trend", Severity: types.RiskLevelLow, Description: "2021 saw a 134% increase in reported urban flood events compared to the 2000-2009 decade average.", Source: "UNDRR"},
}

var historicalFloods = map[string][]types.FloodEvent{
	"mumbai": {
		{Year: 2005, Event: "Mumbai Floods", Deaths: intPtr(1094), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(944), Description: "July 26, 2005 - 944mm of rain in 24 hours, deadliest urban flood in Indian history.", Source: "IMD"},
		{Year: 2017, Event: "Mumbai Monsoon Floods", Deaths: intPtr(33), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(298), Description: "August 2017 flooding caused widespread transport disruption and building collapses.", Source: "NDMA"},
		{Year: 2021, Event: "Mumbai Monsoon Floods", Deaths: intPtr(22), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(320), Description: "July 2021 heavy rains led to landslides and building collapses in suburbs.", Source: "NDMA"},
	},
	"new orleans": {
		{Year: 2005, Event: "Hurricane Katrina", Deaths: intPtr(1833), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(250), Description: "August 29, 2005 - Levee failures flooded 80% of the city, catastrophic $125B damage.", Source: "FEMA"},
		{Year: 2016, Event: "Louisiana Floods", Deaths: intPtr(13), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(686), Description: "August 2016 - Historic flooding affected 145,000 homes in southeast Louisiana.", Source: "FEMA"},
	},
	"houston": {
		{Year: 2017, Event: "Hurricane Harvey", Deaths: intPtr(107), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(1539), Description: "August 2017 - Harvey dropped record 1,539mm of rain, flooding 154,000 structures.", Source: "NOAA"},
		{Year: 2015, Event: "Memorial Day Floods", Deaths: intPtr(35), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(310), Description: "May 2015 - Rapid flooding overwhelmed drainage systems, 35 fatalities.", Source: "NWS"},
	},
	"chennai": {
		{Year: 2015, Event: "Chennai Floods", Deaths: intPtr(500), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(1218), Description: "November-December 2015 - Worst floods in 100 years, 500 deaths, $3B damage.", Source: "IMD"},
		{Year: 2023, Event: "Chennai Monsoon Floods", Deaths: intPtr(14), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(270), Description: "October 2023 - Northeast monsoon flooding inundated several districts.", Source: "NDMA"},
	},
	"kolkata": {
		{Year: 2021, Event: "Cyclone Yaas", Deaths: intPtr(19), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(320), Description: "May 2021 - Cyclone Yaas caused extensive coastal flooding in West Bengal.", Source: "NDMA"},
		{Year: 2017, Event: "Kolkata Urban Floods", Deaths: intPtr(12), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(210), Description: "August 2017 - Heavy rains caused waterlogging across major areas of the city.", Source: "KMC"},
	},
	"delhi": {
		{Year: 2023, Event: "Delhi Yamuna Floods", Deaths: intPtr(27), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(153), Description: "July 2023 - Yamuna river reached record levels, flooding low-lying areas.", Source: "CWC"},
		{Year: 2021, Event: "Delhi Monsoon Flooding", Deaths: intPtr(10), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(111), Description: "September 2021 - Unprecedented rainfall in single day caused massive waterlogging.", Source: "IMD"},
	},
	"bangalore": {
		{Year: 2022, Event: "Bangalore Floods", Deaths: intPtr(16), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(131), Description: "September 2022 - Tech parks and residential areas including Bellandur submerged.", Source: "IMD"},
		{Year: 2017, Event: "Bangalore Urban Floods", Deaths: intPtr(10), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(98), Description: "August 2017 - Heavy rains caused massive waterlogging across IT corridors.", Source: "BBMP"},
	},
	"hyderabad": {
		{Year: 2020, Event: "Hyderabad Floods", Deaths: intPtr(77), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(324), Description: "October 2020 - Worst flooding in 30 years, 77 deaths, severe damage to Old City.", Source: "NDMA"},
		{Year: 2016, Event: "Hyderabad Flash Floods", Deaths: intPtr(23), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(187), Description: "August 2016 - Flash floods submerged hundreds of colonies across city.", Source: "GHMC"},
	},
	"tirupati": {
		{Year: 2020, Event: "Cyclone Nivar Flooding", Deaths: intPtr(7), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(310), Description: "November 2020 - Cyclone Nivar brought severe rainfall and flooding to Tirupati and Chittoor district.", Source: "NDMA"},
		{Year: 2022, Event: "Tirupati Monsoon Floods", Deaths: intPtr(5), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(195), Description: "October 2022 - Heavy northeast monsoon rains caused flooding in low-lying areas.", Source: "APSDMA"},
	},
	"jakarta": {
		{Year: 2020, Event: "Jakarta New Year Floods", Deaths: intPtr(66), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(377), Description: "January 1, 2020 - Record rainfall flooded 169 locations across greater Jakarta.", Source: "BNPB"},
		{Year: 2007, Event: "Jakarta Mega-Floods", Deaths: intPtr(57), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(340), Description: "February 2007 - Two-thirds of Jakarta submerged, 57 deaths, 400,000 evacuated.", Source: "OCHA"},
	},
	"london": {
		{Year: 2021, Event: "London Flash Floods", Deaths: intPtr(4), Severity: types.RiskLevelMedium, RainfallMM: floatPtr(94), Description: "July 2021 - Underground stations flooded, streets impassable across west London.", Source: "EA"},
		{Year: 2007, Event: "UK Summer Floods", Deaths: intPtr(13), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(118), Description: "June-July 2007 - England's worst peacetime emergency, 55,000 homes flooded.", Source: "EA"},
	},
	"bangkok": {
		{Year: 2011, Event: "Thailand Megaflood", Deaths: intPtr(813), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(850), Description: "Jul-Dec 2011 - Worst flooding in 50 years, 40% of Thailand affected, $45B damage.", Source: "OCHA"},
	},
	"new york": {
		{Year: 2012, Event: "Hurricane Sandy", Deaths: intPtr(43), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(111), Description: "October 2012 - 14-foot storm surge flooded NYC subways and lower Manhattan.", Source: "FEMA"},
		{Year: 2021, Event: "Hurricane Ida Remnants", Deaths: intPtr(13), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(183), Description: "September 2021 - Record 3.15 inches/hour rainfall flooded subway and basements.", Source: "NWS"},
	},
	"miami": {
		{Year: 2017, Event: "Hurricane Irma", Deaths: intPtr(4), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(320), Description: "September 2017 - Storm surge and heavy rain flooded Miami Beach and downtown.", Source: "NOAA"},
	},
	"venice": {
		{Year: 2019, Event: "Venice Acqua Alta", Deaths: intPtr(2), Severity: types.RiskLevelHigh, RainfallMM: floatPtr(148), Description: "November 2019 - 187cm water level, second highest ever, 85% of city flooded.", Source: "CNR"},
	},
}
