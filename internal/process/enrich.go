package process

import (
	"strconv"
	"strings"

	"github.com/sdrhub/acarshub/internal/types"
)

// EnrichedMessage is the broadcast form of a message: the normalized
// record plus decorative lookups the UI renders directly.
type EnrichedMessage struct {
	types.Message

	Airline       string `json:"airline,omitempty"`
	GroundStation string `json:"ground_station,omitempty"`
	ToAddrHex     string `json:"toaddr_hex,omitempty"`
	FromAddrHex   string `json:"fromaddr_hex,omitempty"`
}

// airlines maps ICAO three-letter flight prefixes to carrier names.
// Decorative only; unknown prefixes stay unannotated.
var airlines = map[string]string{
	"AAL": "American Airlines",
	"ACA": "Air Canada",
	"AFR": "Air France",
	"ASA": "Alaska Airlines",
	"BAW": "British Airways",
	"DAL": "Delta Air Lines",
	"DLH": "Lufthansa",
	"EJA": "NetJets",
	"FDX": "FedEx Express",
	"JBU": "JetBlue Airways",
	"KLM": "KLM Royal Dutch Airlines",
	"QFA": "Qantas",
	"SWA": "Southwest Airlines",
	"UAL": "United Airlines",
	"UPS": "UPS Airlines",
	"WJA": "WestJet",
}

// hfdlGroundStations maps HFDL ground-station ids to their names.
var hfdlGroundStations = map[string]string{
	"1":  "San Francisco, California",
	"2":  "Molokai, Hawaii",
	"3":  "Reykjavik, Iceland",
	"4":  "Riverhead, New York",
	"5":  "Auckland, New Zealand",
	"6":  "Hat Yai, Thailand",
	"7":  "Shannon, Ireland",
	"8":  "Johannesburg, South Africa",
	"9":  "Barrow, Alaska",
	"10": "Muan, South Korea",
	"11": "Albrook, Panama",
	"13": "Santa Cruz, Bolivia",
	"14": "Krasnoyarsk, Russia",
	"15": "Al Muharraq, Bahrain",
	"16": "Agana, Guam",
	"17": "Canarias, Spain",
}

// Enrich decorates a normalized message. Lookup failures leave fields
// empty; enrichment never rejects a message.
func Enrich(m *types.Message) *EnrichedMessage {
	e := &EnrichedMessage{Message: *m}

	if len(m.Flight) >= 3 {
		e.Airline = airlines[strings.ToUpper(m.Flight[:3])]
	}
	if m.Kind == types.KindHFDL && m.StationID != "" {
		e.GroundStation = hfdlGroundStations[m.StationID]
	}
	e.ToAddrHex = addrHex(m.ToAddr)
	e.FromAddrHex = addrHex(m.FromAddr)
	return e
}

// addrHex renders a decimal direction address as upper-case hex.
// Addresses that are already non-numeric pass through unchanged.
func addrHex(addr string) string {
	if addr == "" {
		return ""
	}
	n, err := strconv.ParseInt(addr, 10, 64)
	if err != nil {
		return addr
	}
	return strings.ToUpper(strconv.FormatInt(n, 16))
}
