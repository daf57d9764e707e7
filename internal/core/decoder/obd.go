package decoder

import "bytes"

// Hint labels for plain OBD-II adapter traffic.
const (
	HintATCommand        = "AT_COMMAND"
	HintELM327ID         = "ELM327_ID"
	HintOK               = "OK_RESPONSE"
	HintError            = "ERROR_RESPONSE"
	HintMode01           = "MODE01_RESPONSE"
	HintDTC              = "DTC_RESPONSE"
	HintMode09           = "MODE09_RESPONSE"
	HintISOTPFirst       = "ISOTP_FIRST_FRAME"
	HintISOTPConsecutive = "ISOTP_CONSECUTIVE_FRAME"
	HintISOTPFlowControl = "ISOTP_FLOW_CONTROL"
	HintHexOBD           = "HEX_OBD_RESPONSE"
)

var hexOBDPrefixes = [][]byte{[]byte("41 "), []byte("43 "), []byte("49 ")}

// OBDHints labels the OBD-II and ELM327 patterns found in an RFCOMM payload.
// Labels are heuristic and may overlap.
func OBDHints(payload []byte) []string {
	var hints []string

	if bytes.Contains(payload, []byte("AT")) {
		hints = append(hints, HintATCommand)
	}
	if bytes.Contains(payload, []byte("ELM")) || bytes.Contains(payload, []byte("elm")) {
		hints = append(hints, HintELM327ID)
	}
	if bytes.Contains(payload, []byte("OK")) {
		hints = append(hints, HintOK)
	}
	if bytes.Contains(payload, []byte("?")) || bytes.Contains(payload, []byte("ERROR")) {
		hints = append(hints, HintError)
	}

	if len(payload) >= 2 {
		switch payload[0] {
		case 0x41:
			hints = append(hints, HintMode01)
		case 0x43:
			hints = append(hints, HintDTC)
		case 0x49:
			hints = append(hints, HintMode09)
		}
	}

	if len(payload) >= 1 {
		switch payload[0] >> 4 {
		case 1:
			hints = append(hints, HintISOTPFirst)
		case 2:
			hints = append(hints, HintISOTPConsecutive)
		case 3:
			hints = append(hints, HintISOTPFlowControl)
		}
	}

	for _, p := range hexOBDPrefixes {
		if bytes.HasPrefix(payload, p) {
			hints = append(hints, HintHexOBD)
			break
		}
	}
	return hints
}
