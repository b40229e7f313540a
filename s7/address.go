package s7

import (
	"strconv"
	"strings"
)

// Area identifies an S7 memory area.
type Area int

const (
	AreaUnknown Area = iota
	AreaDB
	AreaDI
	AreaI
	AreaQ
	AreaM
	AreaT
	AreaC
	AreaLocal
	AreaDataRecord
	AreaSysInfo200
	AreaSysFlags200
	AreaAnaIn200
	AreaAnaOut200
	AreaDirect
)

func (a Area) String() string {
	switch a {
	case AreaDB:
		return "DB"
	case AreaDI:
		return "DI"
	case AreaI:
		return "I"
	case AreaQ:
		return "Q"
	case AreaM:
		return "M"
	case AreaT:
		return "T"
	case AreaC:
		return "C"
	case AreaLocal:
		return "LOCAL"
	case AreaDataRecord:
		return "DATA_RECORD"
	case AreaSysInfo200:
		return "SYSTEM_INFO_200"
	case AreaSysFlags200:
		return "SYSTEM_FLAGS_200"
	case AreaAnaIn200:
		return "ANALOG_IN_200"
	case AreaAnaOut200:
		return "ANALOG_OUT_200"
	case AreaDirect:
		return "DIRECT"
	default:
		return "?"
	}
}

// areaCode is the fixed S7ANY area byte for each Area (spec §6).
func (a Area) areaCode() byte {
	switch a {
	case AreaI:
		return 0x81
	case AreaQ:
		return 0x82
	case AreaM:
		return 0x83
	case AreaDB:
		return 0x84
	case AreaDI:
		return 0x85
	case AreaLocal:
		return 0x86
	case AreaC:
		return 0x1C
	case AreaT:
		return 0x1D
	case AreaDataRecord:
		return 0x01
	case AreaSysInfo200:
		return 0x03
	case AreaSysFlags200:
		return 0x05
	case AreaAnaIn200:
		return 0x06
	case AreaAnaOut200:
		return 0x07
	case AreaDirect:
		return 0x80
	default:
		return 0x00
	}
}

var areaTagTable = map[string]Area{
	"DB":    AreaDB,
	"DI":    AreaDI,
	"I":     AreaI,
	"E":     AreaI, // Eingang, the German mnemonic some configs use
	"Q":     AreaQ,
	"A":     AreaQ, // Ausgang
	"M":     AreaM,
	"T":     AreaT,
	"C":     AreaC,
	"Z":     AreaC, // Zähler
}

// Address is a parsed S7 memory address: an area tag plus the numeric
// vector [dbNumber, byteOffset, bitNum]. BitNum is -1 when the address is
// not bit-addressable (spec §3, §4.8).
type Address struct {
	Area     Area
	DBNumber int
	Offset   int
	BitNum   int
}

// areaTagsByLength lists areaTagTable's keys longest-first, so a
// two-letter tag like "DB" is tried before any one-letter tag that might
// otherwise be mistaken for its first character.
var areaTagsByLength = sortedAreaTags()

func sortedAreaTags() []string {
	tags := make([]string, 0, len(areaTagTable))
	for tag := range areaTagTable {
		tags = append(tags, tag)
	}
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && len(tags[j]) > len(tags[j-1]); j-- {
			tags[j], tags[j-1] = tags[j-1], tags[j]
		}
	}
	return tags
}

// ParseAddress parses a textual address such as "DB21.DBX4.1", "M10.0",
// "I1.0", "Q2.3", "T5", or "C7" (spec §4.8). The area tag is matched as
// the longest known prefix of the (uppercased) string; everything after
// it is tokenised into alphabetic and decimal runs. DB areas consume
// their first numeric run as the block number; every area then consumes
// the remaining numeric runs as byte offset and (if present) bit number.
// Embedded type letters such as the "DBX"/"MW" convention — which may sit
// directly against the area tag with no separating digit, e.g. "MB0" —
// surface as alpha runs in the remainder and are simply ignored, since
// this library takes the data type from the caller, not from the address
// text.
func ParseAddress(addr string) (Address, error) {
	raw := addr
	addr = strings.ToUpper(strings.TrimSpace(addr))
	if addr == "" {
		return Address{}, &AddressParseError{Address: raw, Reason: "empty address"}
	}

	var area Area
	var matched bool
	var rest string
	for _, tag := range areaTagsByLength {
		if strings.HasPrefix(addr, tag) {
			area = areaTagTable[tag]
			rest = addr[len(tag):]
			matched = true
			break
		}
	}
	if !matched {
		return Address{}, &AddressParseError{Address: raw, Reason: "no area tag found"}
	}

	_, numericRuns := tokenise(rest)
	a := Address{Area: area, BitNum: -1}
	runs := numericRuns
	if area == AreaDB {
		if len(runs) == 0 {
			return Address{}, &AddressParseError{Address: raw, Reason: "DB address missing block number"}
		}
		a.DBNumber, _ = strconv.Atoi(runs[0])
		runs = runs[1:]
	}
	if len(runs) > 0 {
		a.Offset, _ = strconv.Atoi(runs[0])
	} else if area != AreaT && area != AreaC {
		return Address{}, &AddressParseError{Address: raw, Reason: "missing byte offset"}
	}
	if len(runs) > 1 {
		bit, _ := strconv.Atoi(runs[1])
		if bit < 0 || bit > 7 {
			return Address{}, &AddressParseError{Address: raw, Reason: "bit number out of range 0-7"}
		}
		a.BitNum = bit
	}
	return a, nil
}

// tokenise splits s (already upper-cased) into the ordered list of maximal
// alphabetic runs and the ordered list of maximal decimal-digit runs.
func tokenise(s string) (alpha, numeric []string) {
	var cur strings.Builder
	flushAlpha := func() {
		if cur.Len() > 0 {
			alpha = append(alpha, cur.String())
			cur.Reset()
		}
	}
	flushNumeric := func() {
		if cur.Len() > 0 {
			numeric = append(numeric, cur.String())
			cur.Reset()
		}
	}
	mode := 0 // 0=none, 1=alpha, 2=numeric
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if mode == 2 {
				flushNumeric()
			}
			mode = 1
			cur.WriteRune(r)
		case r >= '0' && r <= '9':
			if mode == 1 {
				flushAlpha()
			}
			mode = 2
			cur.WriteRune(r)
		default:
			if mode == 1 {
				flushAlpha()
			} else if mode == 2 {
				flushNumeric()
			}
			mode = 0
		}
	}
	if mode == 1 {
		flushAlpha()
	} else if mode == 2 {
		flushNumeric()
	}
	return alpha, numeric
}

// ValidateAddress reports whether addr parses successfully.
func ValidateAddress(addr string) error {
	_, err := ParseAddress(addr)
	return err
}
