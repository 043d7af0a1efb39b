package errors

import "strconv"

// Color is the indicator color selected by the highest active level.
type Color string

const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorBlue   Color = "blue"
)

// Hex returns the fixed color code shown by the host shell
func (c Color) Hex() string {
	switch c {
	case ColorOrange:
		return "#FFA500"
	case ColorBlue:
		return "#0000FF"
	default:
		return "#FF0000"
	}
}

// ColorFor maps a level to its indicator color
func ColorFor(level Level) Color {
	switch level {
	case LevelWarning:
		return ColorOrange
	case LevelInfo:
		return ColorBlue
	default:
		return ColorRed
	}
}

// Badge is the compact always-visible summary of unresolved errors.
type Badge struct {
	Text  string `json:"text"`
	Color Color  `json:"color"`
}

// Count returns the numeric value of Text, zero when empty
func (b Badge) Count() int {
	n, _ := strconv.Atoi(b.Text)
	return n
}

// HighestLevel returns error if any record is an error, else warning if any
// record is a warning, else info. An empty input yields info.
func HighestLevel(records []ErrorRecord) Level {
	highest := LevelInfo
	for _, rec := range records {
		if rec.Level == LevelError {
			return LevelError
		}
		if rec.Level == LevelWarning {
			highest = LevelWarning
		}
	}
	return highest
}

// ComputeBadge derives the badge from a set of records. The text is empty
// when there are no records, otherwise the decimal count.
func ComputeBadge(records []ErrorRecord) Badge {
	text := ""
	if len(records) > 0 {
		text = strconv.Itoa(len(records))
	}
	return Badge{
		Text:  text,
		Color: ColorFor(HighestLevel(records)),
	}
}
