package xlsxwriter

import (
	"fmt"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/xuri/excelize/v2"
)

type styleKey struct {
	style report.Style
	band  int
}

// styleSet registers every style the sheet needs once and resolves logical
// styles to excelize style ids.
type styleSet struct {
	ids map[styleKey]int
}

func newStyleSet(f *excelize.File) (*styleSet, error) {
	s := &styleSet{ids: map[styleKey]int{}}
	currency := CurrencyFormat

	add := func(key styleKey, st *excelize.Style) error {
		st.Border = border()
		if st.Font == nil {
			st.Font = &excelize.Font{}
		}
		st.Font.Size = FontSize
		id, err := f.NewStyle(st)
		if err != nil {
			return fmt.Errorf("failed to create style %d: %w", key.style, err)
		}
		s.ids[key] = id
		return nil
	}

	if err := add(styleKey{report.StyleHeader, 0}, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: headerFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, err
	}

	for band, color := range []string{evenFill, oddFill} {
		fill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
		data := map[report.Style]*excelize.Style{
			report.StyleText:       {Fill: fill},
			report.StyleTextCenter: {Fill: fill, Alignment: &excelize.Alignment{Horizontal: "center"}},
			report.StyleNumber:     {Fill: fill, Alignment: &excelize.Alignment{Horizontal: "center"}},
			report.StyleCurrency:   {Fill: fill, CustomNumFmt: &currency},
		}
		for style, st := range data {
			if err := add(styleKey{style, band}, st); err != nil {
				return nil, err
			}
		}
	}

	if err := add(styleKey{report.StyleTotalLabel, 0}, &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return nil, err
	}
	if err := add(styleKey{report.StyleTotal, 0}, &excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: &currency,
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// id returns the style id for a logical style. Header and total styles are
// not banded; unknown styles resolve to 0 (default).
func (s *styleSet) id(style report.Style, band int) int {
	if id, ok := s.ids[styleKey{style, band % 2}]; ok {
		return id
	}
	if id, ok := s.ids[styleKey{style, 0}]; ok {
		return id
	}
	return 0
}

func border() []excelize.Border {
	sides := []string{"left", "top", "right", "bottom"}
	out := make([]excelize.Border, len(sides))
	for i, side := range sides {
		out[i] = excelize.Border{Type: side, Color: borderColor, Style: 1}
	}
	return out
}
