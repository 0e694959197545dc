package telemetry

import "strings"

// Column widths for the human view.
const (
	intWidth   = 2
	floatWidth = 6
	pointCol   = 4 // column the decimal point is aligned on
)

// Labels is the column header line printed under each human-mode row.
var Labels = strings.Join([]string{
	"  thro", "  aile", "  elev", "  rudd", "  gear", "  aux1",
	"roll_c", "ptch_c", " yaw_c",
	"roll_t", "ptch_t", " yaw_t",
	"roll_p", "ptch_p", " yaw_p",
	"r_elev", "l_elev", " r_mtr", " l_mtr", "ln_leg",
	"cm",
	"fm",
	"ts",
	"fl",
}, " ")

// FormatInt right-aligns an integer token to width 2.
func FormatInt(tok string) string {
	if len(tok) >= intWidth {
		return tok
	}
	return strings.Repeat(" ", intWidth-len(tok)) + tok
}

// FormatFloat pads tok so its decimal point lands on a fixed column, then
// cuts it to width 6.
func FormatFloat(tok string) string {
	dot := strings.IndexByte(tok, '.')
	if dot < 0 {
		return FormatInt(tok)
	}
	s := tok
	if dot < pointCol {
		s = strings.Repeat(" ", pointCol-dot) + tok
	}
	if len(s) > floatWidth {
		s = s[:floatWidth]
	}
	return s
}

// FormatTokens renders tokens as aligned columns separated by one space.
func FormatTokens(tokens []string) string {
	cols := make([]string, len(tokens))
	for i, tok := range tokens {
		if strings.Contains(tok, ".") {
			cols[i] = FormatFloat(tok)
		} else {
			cols[i] = FormatInt(tok)
		}
	}
	return strings.Join(cols, " ")
}

// FormatHuman renders a record for an interactive terminal: the aligned
// data row, then the header line, leaving the cursor at the start of the
// header so the next row overwrites it.
func FormatHuman(r *Record) string {
	return "\r" + FormatTokens(r.Tokens[:]) + "\n" + Labels + "\r"
}
