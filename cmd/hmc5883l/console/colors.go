package console

import "github.com/fatih/color"

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)

// Axis colors follow the x/y/z = red/green/blue convention.
var (
	AxisX = color.New(color.FgHiRed).SprintFunc()
	AxisY = color.New(color.FgHiGreen).SprintFunc()
	AxisZ = color.New(color.FgHiBlue).SprintFunc()
)
